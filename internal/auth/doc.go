// Package auth provides authentication and authorization for the API.
//
// It supports two modes:
//   - "none": no login; every request acts as the implicit default user
//   - "local": accounts stored in the database, with session cookies for
//     browsers and bearer tokens for scripts
//
// # Configuration
//
//	AUTH_MODE=local                # or none
//	AUTH_SESSION_SECRET=<hex>      # CSRF key, generated at startup if empty
//	AUTH_SESSION_LIFETIME=24h
//	AUTH_TOKEN_EXPIRY=720h
//	AUTH_BCRYPT_COST=12
//	AUTH_SECURE_COOKIES=true
//	AUTH_MAX_FAILED_LOGINS=5
//	AUTH_LOCKOUT_DURATION=30m
//
// # Usage
//
//	authService := auth.NewService(users.NewRepository(db), cfg.Auth)
//	mw := auth.NewMiddleware(authService, sessions, cfg.Auth, defaultUser)
//	router.Use(sessions.SessionLoadSave(), mw.Handler())
//
// Handlers read the caller with auth.GetUserID(c).
package auth
