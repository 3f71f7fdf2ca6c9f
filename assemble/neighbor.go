package assemble

import (
	"github.com/shearfit/obsio/v2/core/dataerror"
	"github.com/shearfit/obsio/v2/obs"
	"github.com/shearfit/obsio/v2/wcs"
)

// OffChipNeighbor - places a neighbor that has no cutout on the central
// observation's exposure. The separation is carried over through the
// sky: both coadd positions go through the coadd WCS, the tangent-plane
// offset comes back through the central observation's Jacobian, and the
// central's own PSF stands in for the neighbor's. An approximation, but
// an off-chip neighbor only ever grazes the stamp edge.
//
// Returns nils without error when the band has no WCS for the coadd or
// the neighbor has no cutouts at all; those are run configurations, not
// data failures
func (a *Assembler) OffChipNeighbor(central *obs.Observation, nbrIndex int) (*obs.PSFObservation, *obs.Jacobian, error) {
	band := central.Meta.Band
	reader := a.readers[band]

	ncut, err := reader.NCutout(nbrIndex)
	if err != nil {
		return nil, nil, err
	}
	if ncut == 0 {
		a.log.Debugf("neighbor %v has no cutouts, skipping off-chip placement", nbrIndex)
		return nil, nil, nil
	}

	cenFile, err := reader.FileID(central.Meta.Index, 0)
	if err != nil {
		return nil, nil, err
	}
	nbrFile, err := reader.FileID(nbrIndex, 0)
	if err != nil {
		return nil, nil, err
	}
	if cenFile != nbrFile {
		return nil, nil, dataerror.MakeConfigError("central and neighbor disagree on the coadd file: %v vs %v",
			cenFile, nbrFile)
	}

	if a.stores == nil || a.stores[band] == nil {
		a.log.Debugf("no WCS loaded for band %v, skipping off-chip placement", band)
		return nil, nil, nil
	}
	transform := a.stores[band].Get(cenFile)
	if transform == nil {
		a.log.Debugf("no WCS for file %v, skipping off-chip placement", cenFile)
		return nil, nil, nil
	}

	cenRow, cenCol, err := reader.OrigRowCol(central.Meta.Index, 0)
	if err != nil {
		return nil, nil, err
	}
	nbrRow, nbrCol, err := reader.OrigRowCol(nbrIndex, 0)
	if err != nil {
		return nil, nil, err
	}

	// 0-based pixel positions to the WCS's FITS convention
	offset := a.infos[band][cenFile].PositionOffset
	if offset == 0 {
		offset = 1.0
	}
	raCen, decCen := transform.Image2Sky(cenCol+offset, cenRow+offset)
	raNbr, decNbr := transform.Image2Sky(nbrCol+offset, nbrRow+offset)

	u, v := wcs.TangentOffset(raCen, decCen, raNbr, decNbr)
	row, col := central.Jacobian.Invert(u, v)
	a.log.Debugf("neighbor %v placed off chip at (%.2f, %.2f), offset (%.3f, %.3f) arcsec",
		nbrIndex, row, col, u, v)

	jac := central.Jacobian.WithCenter(row, col)
	return central.PSF, &jac, nil
}
