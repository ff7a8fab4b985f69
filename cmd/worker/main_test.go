package main

import (
	"testing"

	"github.com/market-basket/market-basket/internal/app"
	_ "github.com/market-basket/market-basket/internal/testing/guard"
)

func TestMainSkipsInTestMode(t *testing.T) {
	app.RefreshTestMode()
	if !app.InTestMode() {
		t.Fatal("expected test mode")
	}
	main()
}
