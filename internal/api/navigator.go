package api

import "context"

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=api_test

// Navigator moves the user to the login view when the session is invalidated
type Navigator interface {
	ToLogin(ctx context.Context)
}
