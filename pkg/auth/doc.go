// Package auth implements registration, login, logout and bearer-token
// verification for the pizza service.
//
// A token is usable only while three things hold: its HS256 signature
// verifies, it has not expired, and its hash is still present in the Ledger.
// Logout deletes the ledger entry, so a signed and unexpired token stops
// working immediately.
//
//	codec := auth.NewTokenCodec([]byte(secret), 24*time.Hour)
//	svc := auth.NewService(userStore, ledger, codec, auth.NewPasswordHasher(bcrypt.DefaultCost))
//	user, token, err := svc.Register(ctx, auth.RegisterRequest{Name: "pizza diner", Email: "d@jwt.com", Password: "diner"})
//	identity, err := svc.Authenticate(ctx, token)
package auth
