package wcs

import "math"

const radToArcsec = 3600.0 / degToRad

// TangentOffset - tangent-plane offset of a neighbor position from a
// central position, in arcsec, on the plane touching the sphere at the
// central position. Both positions go to unit vectors; the neighbor is
// projected onto the central point's local theta-hat (u, toward
// decreasing dec) and phi-hat (v, toward increasing ra) axes, with the
// 1/cos(angle) factor extending the projection out to the plane. The
// result feeds a cutout Jacobian's inverse to place off-chip neighbors
func TangentOffset(raCen float64, decCen float64, raNbr float64, decNbr float64) (float64, float64) {
	rCen, uCen, vCen := unitVectors(raCen, decCen)
	rNbr, _, _ := unitVectors(raNbr, decNbr)

	cosang := dot(rCen, rNbr)
	u := dot(rNbr, uCen) / cosang * radToArcsec
	v := dot(rNbr, vCen) / cosang * radToArcsec
	return u, v
}

// unitVectors - position vector plus the local tangent basis at
// (ra, dec), using the polar angle theta = 90 - dec
func unitVectors(ra float64, dec float64) (r, u, v [3]float64) {
	sinTheta, cosTheta := math.Sincos((90.0 - dec) * degToRad)
	sinPhi, cosPhi := math.Sincos(ra * degToRad)

	r = [3]float64{sinTheta * cosPhi, sinTheta * sinPhi, cosTheta}
	u = [3]float64{cosTheta * cosPhi, cosTheta * sinPhi, -sinTheta}
	v = [3]float64{-sinPhi, cosPhi, 0}
	return r, u, v
}

func dot(a, b [3]float64) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}
