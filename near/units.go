package near

import "math/big"

// TGas is one teragas.
const TGas uint64 = 1_000_000_000_000

// DefaultGas is attached to every call this service makes.
const DefaultGas = 100 * TGas

// YoctoPerNear is 10^24.
var YoctoPerNear = new(big.Int).Exp(big.NewInt(10), big.NewInt(24), nil)

// OneYocto returns the minimal deposit required by call-then-notify methods.
func OneYocto() *big.Int {
	return big.NewInt(1)
}

// Near converts whole NEAR to yoctoNEAR.
func Near(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), YoctoPerNear)
}
