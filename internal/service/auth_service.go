package service

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenInvalid = errors.New("token invalid")
	ErrTokenExpired = errors.New("token expired")
)

// Claims son los datos que este servicio extrae del token del proveedor de
// identidad. Solo importa el id estable del usuario y, para operaciones
// administrativas, el rol.
type Claims struct {
	UserID      string `json:"uid"`
	DisplayName string `json:"display_name,omitempty"`
	Role        string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// IsAdmin indica si el token trae el rol administrativo.
func (c Claims) IsAdmin() bool {
	return c.Role == "admin"
}

// AuthService valida bearer tokens emitidos por el proveedor de identidad
// externo. Este servicio no emite tokens: la identidad (alta, login,
// refresh) vive fuera del sistema; aquí solo se resuelve token → usuario.
type AuthService struct {
	secret []byte
}

func NewAuthService(secret string) *AuthService {
	return &AuthService{secret: []byte(secret)}
}

// ParseAccessToken valida firma y vigencia, y devuelve los claims.
func (s *AuthService) ParseAccessToken(token string) (Claims, error) {
	if len(s.secret) == 0 {
		return Claims{}, ErrTokenInvalid
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, ErrTokenInvalid
	}

	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, ErrTokenInvalid
	}
	if claims.UserID == "" {
		// Tokens de proveedores externos traen el id en el subject estándar.
		claims.UserID = claims.Subject
	}
	if !parsed.Valid || strings.TrimSpace(claims.UserID) == "" {
		return Claims{}, ErrTokenInvalid
	}
	return claims, nil
}
