package colorspace

// Linear RGB to LMS cone response, row major.
var rgbToLMS = [3][3]float64{
	{0.31394, 0.63957, 0.04652},
	{0.15530, 0.75796, 0.08673},
	{0.01772, 0.10945, 0.87277},
}

var lmsToRGB = [3][3]float64{
	{5.47213, -4.64189, 0.16958},
	{-1.12464, 2.29255, -0.16786},
	{0.02993, -0.19325, 1.16339},
}

func RGBToLMS(r, g, b float64) (l, m, s float64) {
	return mul3(rgbToLMS, r, g, b)
}

func LMSToRGB(l, m, s float64) (r, g, b float64) {
	return mul3(lmsToRGB, l, m, s)
}

func mul3(k [3][3]float64, x, y, z float64) (float64, float64, float64) {
	return k[0][0]*x + k[0][1]*y + k[0][2]*z,
		k[1][0]*x + k[1][1]*y + k[1][2]*z,
		k[2][0]*x + k[2][1]*y + k[2][2]*z
}
