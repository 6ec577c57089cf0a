package redirect

import (
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// Callback holds the parameters the provider appended to the redirect URL.
type Callback struct {
	AccessToken      string
	RefreshToken     string
	ExpiresIn        time.Duration
	Error            string
	ErrorCode        string
	ErrorDescription string
}

// Failed reports whether the provider returned an error instead of tokens.
func (c *Callback) Failed() bool {
	return c.Error != "" || c.ErrorCode != ""
}

// ParseCallback reads callback parameters from both the query string and the
// fragment. Fragment values win when a key appears in both.
func ParseCallback(rawURL string) (*Callback, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrap(err, "[ParseCallback] invalid callback url")
	}

	values := u.Query()
	if u.Fragment != "" {
		fragment, err := url.ParseQuery(u.Fragment)
		if err != nil {
			return nil, errors.Wrap(err, "[ParseCallback] invalid callback fragment")
		}
		for k, v := range fragment {
			values[k] = v
		}
	}
	return fromValues(values), nil
}

func fromValues(values url.Values) *Callback {
	cb := &Callback{
		AccessToken:      values.Get("access_token"),
		RefreshToken:     values.Get("refresh_token"),
		Error:            values.Get("error"),
		ErrorCode:        values.Get("error_code"),
		ErrorDescription: values.Get("error_description"),
	}
	if secs, err := strconv.Atoi(values.Get("expires_in")); err == nil && secs > 0 {
		cb.ExpiresIn = time.Duration(secs) * time.Second
	}
	return cb
}

func hasCallbackParams(values url.Values) bool {
	for _, k := range []string{"access_token", "refresh_token", "error", "error_code"} {
		if values.Has(k) {
			return true
		}
	}
	return false
}
