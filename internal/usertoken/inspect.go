// Package usertoken reads claims out of bearer tokens issued by the catalog
// service. The signing key belongs to the remote service, so nothing here
// verifies signatures; the results are hints for display only.
package usertoken

import (
	"errors"
	"strconv"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// ErrOpaqueToken is returned for tokens that are not parseable JWTs.
var ErrOpaqueToken = errors.New("token is not a JWT")

// Info holds the claims the storefront cares about.
type Info struct {
	Subject   string
	Username  string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// Expired reports whether the token carries an expiry that is before now.
func (i Info) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && now.After(i.ExpiresAt)
}

type catalogClaims struct {
	jwt.RegisteredClaims
	UserID   int64  `json:"id"`
	Username string `json:"username"`
}

// Inspect decodes token without verifying it.
func Inspect(token string) (Info, error) {
	token = strings.TrimSpace(token)
	if strings.Count(token, ".") != 2 {
		return Info{}, ErrOpaqueToken
	}
	claims := &catalogClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return Info{}, errors.Join(ErrOpaqueToken, err)
	}
	info := Info{
		Subject:  strings.TrimSpace(claims.Subject),
		Username: claims.Username,
	}
	if info.Subject == "" && claims.UserID != 0 {
		info.Subject = strconv.FormatInt(claims.UserID, 10)
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	if claims.IssuedAt != nil {
		info.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	return info, nil
}
