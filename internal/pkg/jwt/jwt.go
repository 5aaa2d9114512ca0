package jwt

import (
	"errors"
	"time"

	"github.com/cmlabs-hris/compliance-engine/internal/domain/compliance"
	"github.com/go-chi/jwtauth/v5"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Claim names carried by access tokens. The identity provider issues them;
// this service only verifies them, except for operator tokens minted by the
// CLI.
const (
	ClaimUserID   = "user_id"
	ClaimRoleTier = "role_tier"
	ClaimHomeNode = "home_node"
	ClaimType     = "type"

	TokenTypeAccess = "access"
)

var ErrInvalidClaims = errors.New("token claims do not describe a principal")

type Service interface {
	GenerateAccessToken(p compliance.Principal) (token string, expiresAt int64, err error)
	JWTAuth() *jwtauth.JWTAuth
}

type JWTService struct {
	accessTokenExpirationTime string
	tokenAuth                 *jwtauth.JWTAuth
}

func (j *JWTService) JWTAuth() *jwtauth.JWTAuth {
	return j.tokenAuth
}

func NewJWTService(secretKey string, accessTokenExpirationTime string) Service {
	return &JWTService{
		accessTokenExpirationTime: accessTokenExpirationTime,
		tokenAuth:                 jwtauth.New("HS256", []byte(secretKey), nil, jwt.WithAcceptableSkew(30*time.Second)),
	}
}

func (j *JWTService) GenerateAccessToken(p compliance.Principal) (token string, expiresAt int64, err error) {
	expDuration, err := time.ParseDuration(j.accessTokenExpirationTime)
	if err != nil {
		return "", 0, err
	}
	expiresAt = time.Now().Add(expDuration).Unix()

	claims := map[string]interface{}{
		ClaimUserID:   p.ID,
		ClaimRoleTier: string(p.Tier),
		ClaimHomeNode: p.HomeNode,
		ClaimType:     TokenTypeAccess,
		"exp":         expiresAt,
	}

	_, tokenString, err := j.tokenAuth.Encode(claims)
	return tokenString, expiresAt, err
}

// PrincipalFromClaims reads the verified identity out of decoded claims. The
// role tier is passed through unparsed so the scope resolver can reject it.
func PrincipalFromClaims(claims map[string]interface{}) (compliance.Principal, error) {
	userID, _ := claims[ClaimUserID].(string)
	tier, _ := claims[ClaimRoleTier].(string)
	if userID == "" || tier == "" {
		return compliance.Principal{}, ErrInvalidClaims
	}
	home, _ := claims[ClaimHomeNode].(string)
	return compliance.Principal{
		ID:       userID,
		Tier:     compliance.RoleTier(tier),
		HomeNode: home,
	}, nil
}
