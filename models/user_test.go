package models

import (
	"errors"
	"testing"

	"github.com/dzfacture/facture_backend/utils"
)

func TestAuthenticateRoundTrip(t *testing.T) {
	ctx, _, _ := setupTest(t)

	user, err := CreateUser(ctx, &NewUser{
		Name:     "Amine",
		Email:    "amine@example.dz",
		Password: "s3cret-pass",
	})
	if err != nil {
		t.Fatalf("creating user: %v", err)
	}
	if user.Password == "s3cret-pass" {
		t.Fatal("password stored in clear")
	}
	if err := utils.VerifyPassword(user.Password, "s3cret-pass"); err != nil {
		t.Errorf("stored hash does not verify: %v", err)
	}

	token, err := Authenticate(ctx, "amine@example.dz", "s3cret-pass")
	if err != nil {
		t.Fatalf("authenticating: %v", err)
	}
	if token == "" {
		t.Error("empty token on successful login")
	}

	if _, err := Authenticate(ctx, "amine@example.dz", "wrong-pass"); !errors.Is(err, utils.ErrorUnauthorized) {
		t.Errorf("wrong password: err = %v, want ErrorUnauthorized", err)
	}
	if _, err := Authenticate(ctx, "nobody@example.dz", "s3cret-pass"); !errors.Is(err, utils.ErrorUnauthorized) {
		t.Errorf("unknown email: err = %v, want ErrorUnauthorized", err)
	}
}
