package senie

// ColourFormat mirrors the original's colour format enum. Six formats
// are representable at runtime; only four of them (Rgb, Hsl, Lab, Hsv)
// have a source-level (col/xxx ...) constructor the unparser can
// regenerate (see unparse.go).
type ColourFormat int32

const (
	ColourRGB ColourFormat = iota
	ColourHSL
	ColourHSLuv
	ColourLAB
	ColourHSV
	ColourXYZ
)

func (f ColourFormat) String() string {
	switch f {
	case ColourRGB:
		return "RGB"
	case ColourHSL:
		return "HSL"
	case ColourHSLuv:
		return "HSLuv"
	case ColourLAB:
		return "LAB"
	case ColourHSV:
		return "HSV"
	case ColourXYZ:
		return "XYZ"
	default:
		return "UNKNOWN"
	}
}

// colourConstructorNames lists the native names of the four
// source-level colour constructors; natives.go declares a native for
// each of them.
var colourConstructorNames = []string{"col/rgb", "col/hsl", "col/lab", "col/hsv"}

func colourFormatForConstructor(name string) (ColourFormat, bool) {
	switch name {
	case "col/rgb":
		return ColourRGB, true
	case "col/hsl":
		return ColourHSL, true
	case "col/lab":
		return ColourLAB, true
	case "col/hsv":
		return ColourHSV, true
	default:
		return 0, false
	}
}
