package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ulms/ulms-gateway/internal/app"
	_ "github.com/ulms/ulms-gateway/testing"
)

func TestMainReturnsInTestMode(t *testing.T) {
	require.True(t, app.InTestMode())
	main()
}
