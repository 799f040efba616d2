package catalog

import "strconv"

var sizeNames = map[int]string{
	1: "XXS", 2: "XS", 3: "S", 4: "M", 5: "L", 6: "XL", 7: "XXL", 8: "3XL", 9: "4XL",
	23: "23-25", 25: "25-27", 27: "27-29",
	60: "60", 70: "70", 80: "80", 90: "90", 100: "100", 110: "110",
	120: "120", 130: "130", 140: "140", 150: "150", 160: "160",
	499: "AA 65/70", 500: "AB 65/70", 501: "CD 65/70", 502: "EF 65/70",
	503: "AB 75/80", 504: "CD 75/80", 505: "EF 75/80",
	506: "AB 85/90", 507: "CD 85/90", 508: "EF 85/90",
}

// ColorName maps a catalog color code to a display name. Only the last two
// digits are significant.
func ColorName(code string) string {
	n, ok := trailingInt(code, 2)
	if !ok {
		return "Others 其他"
	}
	switch {
	case n <= 1:
		return "White 白"
	case n < 9:
		return "Gray 灰"
	case n == 9:
		return "Black 黑"
	case n <= 19:
		return "Red 紅"
	case n <= 29:
		return "Orange 橘"
	case n <= 39:
		return "Brown 棕"
	case n <= 49:
		return "Yellow 黃"
	case n <= 59:
		return "Green 綠"
	case n < 69:
		return "Blue 藍"
	case n == 69:
		return "Navy 海軍藍"
	case n <= 79:
		return "Purple 紫"
	default:
		return "Others 其他"
	}
}

// SizeName maps a catalog size code to a display name using its last three
// digits. Unknown codes map to "".
func SizeName(code string) string {
	n, ok := trailingInt(code, 3)
	if !ok {
		return ""
	}
	return sizeNames[n]
}

func trailingInt(code string, digits int) (int, bool) {
	if len(code) > digits {
		code = code[len(code)-digits:]
	}
	n, err := strconv.Atoi(code)
	if err != nil {
		return 0, false
	}
	return n, true
}
