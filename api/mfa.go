package api

import (
	"sync"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const totpPeriod = 30

var totpOpts = totp.ValidateOpts{
	Period:    totpPeriod,
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// totpGuard checks second-factor codes and remembers the time step of the
// last accepted code. A code whose step is not newer is refused, so neither
// an observed code nor an older one still inside the skew window can be
// replayed.
type totpGuard struct {
	mu       sync.Mutex
	lastStep int64
}

// verify reports whether code is valid for secret at now and newer than the
// last accepted code
func (g *totpGuard) verify(code, secret string, now time.Time) bool {
	step, ok := matchStep(code, secret, now.UTC())
	if !ok {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if step <= g.lastStep {
		return false
	}
	g.lastStep = step
	return true
}

// matchStep returns the time step within the skew window that code was
// generated for
func matchStep(code, secret string, now time.Time) (int64, bool) {
	exact := totpOpts
	exact.Skew = 0

	skew := int64(totpOpts.Skew)
	for offset := -skew; offset <= skew; offset++ {
		at := now.Add(time.Duration(offset*totpPeriod) * time.Second)
		valid, err := totp.ValidateCustom(code, secret, at, exact)
		if err != nil {
			return 0, false
		}
		if valid {
			return at.Unix() / totpPeriod, true
		}
	}
	return 0, false
}
