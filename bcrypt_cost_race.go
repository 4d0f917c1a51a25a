//go:build race

package auth

import "golang.org/x/crypto/bcrypt"

// passwordHashCost drops to the library default under -race, where hashing
// at the production cost is slow enough to trip test timeouts.
func passwordHashCost() int {
	return bcrypt.DefaultCost
}
