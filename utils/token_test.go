package utils_test

import (
	"testing"

	"github.com/savefood/backoffice_core/utils"
)

func TestJwtRoundTrip(t *testing.T) {
	t.Setenv("TOKEN_HOUR_LIFESPAN", "1")

	token, err := utils.JwtGenerate("user-1", "supplier")
	if err != nil {
		t.Fatal(err)
	}

	parsed, err := utils.JwtValidate(token)
	if err != nil {
		t.Fatal(err)
	}
	if !parsed.Valid {
		t.Fatal("expected a valid token")
	}
	claims, ok := parsed.Claims.(*utils.JwtCustomClaim)
	if !ok {
		t.Fatalf("unexpected claims type %T", parsed.Claims)
	}
	if claims.ID != "user-1" || claims.Role != "supplier" {
		t.Fatalf("claims %+v", claims)
	}

	if utils.JwtExpired(token) {
		t.Fatal("fresh token reported expired")
	}
}

func TestJwtExpired(t *testing.T) {
	t.Setenv("TOKEN_HOUR_LIFESPAN", "-1")

	token, err := utils.JwtGenerate("user-1", "supplier")
	if err != nil {
		t.Fatal(err)
	}
	if !utils.JwtExpired(token) {
		t.Fatal("token past its expiry reported valid")
	}
}

func TestJwtExpiredOnGarbage(t *testing.T) {
	if !utils.JwtExpired("not-a-token") {
		t.Fatal("unparsable token must count as expired")
	}
}
