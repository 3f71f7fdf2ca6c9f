package psf

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/shearfit/obsio/v2/core/dataerror"
	"github.com/shearfit/obsio/v2/core/fileaccess"
	"github.com/shearfit/obsio/v2/core/fitsio"
	"github.com/shearfit/obsio/v2/core/logger"
)

// Blacklist - exposures whose PSF models are known bad. Two vintages of
// file exist: a text list of "run expname ccd flags" lines keyed
// run-expname-ccd, and a FITS table with key and bflags columns keyed
// expname-ccd, where only rows with nonzero bflags count. Membership is
// what matters downstream, a hit flags the exposure with PSFInBlacklist
type Blacklist struct {
	path  string
	flags map[string]int64
}

// LoadBlacklist - reads either blacklist layout, picked by extension
func LoadBlacklist(fs fileaccess.FileAccess, bucket string, blacklistPath string, log logger.ILogger) (*Blacklist, error) {
	log.Infof("reading psf blacklist: %v", blacklistPath)

	b := &Blacklist{
		path:  blacklistPath,
		flags: map[string]int64{},
	}

	var err error
	if strings.HasSuffix(blacklistPath, ".fits") || strings.HasSuffix(blacklistPath, ".fits.fz") {
		err = b.loadTable(fs, bucket)
	} else {
		err = b.loadText(fs, bucket)
	}
	if err != nil {
		return nil, err
	}

	log.Infof("    %v blacklisted psf models", len(b.flags))
	return b, nil
}

func (b *Blacklist) loadTable(fs fileaccess.FileAccess, bucket string) error {
	f, err := fitsio.Open(fs, bucket, b.path)
	if err != nil {
		return err
	}

	for _, u := range f.Units {
		if !fitsio.HasColumn(u, "key") || !fitsio.HasColumn(u, "bflags") {
			continue
		}
		keys, err := fitsio.ColumnString(u, "key")
		if err != nil {
			return errors.Wrapf(err, "bad blacklist table %v", b.path)
		}
		bflags, err := fitsio.ColumnInt64(u, "bflags")
		if err != nil {
			return errors.Wrapf(err, "bad blacklist table %v", b.path)
		}
		for i, key := range keys {
			if bflags[i] != 0 {
				b.flags[key] = bflags[i]
			}
		}
		return nil
	}
	return errors.Errorf("no key/bflags table in blacklist %v", b.path)
}

func (b *Blacklist) loadText(fs fileaccess.FileAccess, bucket string) error {
	data, err := fs.ReadObject(bucket, b.path)
	if err != nil {
		return errors.Wrapf(err, "failed to read blacklist %v", b.path)
	}

	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 4 {
			return dataerror.MakeConfigError("badly formatted blacklist line: '%v'", strings.TrimSpace(line))
		}
		ccd, err := strconv.Atoi(fields[2])
		if err != nil {
			return dataerror.MakeConfigError("bad ccd in blacklist line: '%v'", strings.TrimSpace(line))
		}
		lineFlags, err := strconv.ParseInt(fields[3], 10, 64)
		if err != nil {
			return dataerror.MakeConfigError("bad flags in blacklist line: '%v'", strings.TrimSpace(line))
		}
		key := makeRunKey(fields[0], fields[1], ccd)
		b.flags[key] = lineFlags
	}
	return nil
}

// makeRunKey - the older blacklist key, processing run plus exposure
// plus ccd
func makeRunKey(run string, expname string, ccd int) string {
	return fmt.Sprintf("%s-%s-%02d", run, expname, ccd)
}

// Contains - true if any of the candidate keys is blacklisted
func (b *Blacklist) Contains(keys ...string) bool {
	for _, key := range keys {
		if _, ok := b.flags[key]; ok {
			return true
		}
	}
	return false
}

// Path - where this blacklist was read from
func (b *Blacklist) Path() string {
	return b.path
}
