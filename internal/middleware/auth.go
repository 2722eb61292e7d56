package middleware

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/mcalor/sabor-emilia/internal/auth"
)

func ValidateAuth(h http.Handler, sugar *zap.SugaredLogger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header is missing", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			http.Error(w, "Invalid token format", http.StatusUnauthorized)
			return
		}

		adminID, err := auth.ValidateJWT(tokenString)
		if err != nil {
			sugar.Errorw("Invalid token", "error", err)
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		r.Header.Set("AdminID", adminID)

		h.ServeHTTP(w, r)
	})
}
