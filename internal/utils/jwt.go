package utils // package utils provides helpers for minting and verifying access tokens

import (
    "errors"
    "fmt"
    "strconv"
    "time"

    "github.com/golang-jwt/jwt/v5" // JWT library for creating and parsing signed tokens
)

// AccessToken represents a signed JWT access token along with its expiry.
type AccessToken struct {
    Token string    // the serialized JWT string
    Exp   time.Time // the UTC expiration time
}

// Identity is what a verified token says about its bearer.
type Identity struct {
    UserID uint64
    Role   string
}

var ErrInvalidToken = errors.New("invalid token")

// NewAccessToken builds and signs an HS256 JWT for a user.  The JWT carries
// subject (sub), role, expiration (exp) and issued at (iat).
func NewAccessToken(secret string, userID uint64, role string, ttlMin int) (AccessToken, error) {
    now := time.Now().UTC()
    exp := now.Add(time.Duration(ttlMin) * time.Minute)
    claims := jwt.MapClaims{
        "sub":  strconv.FormatUint(userID, 10),
        "role": role,
        "exp":  exp.Unix(),
        "iat":  now.Unix(),
    }
    t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
    signed, err := t.SignedString([]byte(secret))
    if err != nil {
        return AccessToken{}, err
    }
    return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken verifies an HS256 token and extracts the bearer's
// identity.  The subject may be encoded as a JSON string or number.
func ParseAccessToken(secret, raw string) (Identity, error) {
    tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
        return []byte(secret), nil
    }, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
    if err != nil || !tok.Valid {
        return Identity{}, ErrInvalidToken
    }
    claims, ok := tok.Claims.(jwt.MapClaims)
    if !ok {
        return Identity{}, ErrInvalidToken
    }
    var id Identity
    switch sub := claims["sub"].(type) {
    case string:
        n, err := strconv.ParseUint(sub, 10, 64)
        if err != nil {
            return Identity{}, fmt.Errorf("%w: bad subject", ErrInvalidToken)
        }
        id.UserID = n
    case float64:
        if sub < 1 || sub != float64(uint64(sub)) {
            return Identity{}, fmt.Errorf("%w: bad subject", ErrInvalidToken)
        }
        id.UserID = uint64(sub)
    default:
        return Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
    }
    if id.UserID == 0 {
        return Identity{}, fmt.Errorf("%w: bad subject", ErrInvalidToken)
    }
    id.Role, _ = claims["role"].(string)
    return id, nil
}
