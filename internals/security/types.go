package security

import "github.com/golang-jwt/jwt/v5"

type RequestClaims struct {
	Operator string `json:"sub"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}
