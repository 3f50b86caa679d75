package campaign

import (
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// computeReward derives the payout for a claiming recipient. The draw is
// deterministic given the campaign seed and the sponsor/recipient pair, and
// unpredictable before creation because the seed comes from the beacon.
//
// Equal bounds yield the fixed reward. Otherwise the keccak256 digest of
// {seed, sponsor, recipient} is reduced modulo (upper - lower) and shifted by
// the lower bound. A draw at or above the bonus threshold is replaced by the
// fixed, larger bonus amount, giving the payout its lottery-style step shape.
func computeReward(c *Campaign, sponsor, recipient [20]byte) *big.Int {
	if c.RewardLower.Cmp(c.RewardUpper) == 0 {
		return new(big.Int).Set(c.RewardLower)
	}
	span := new(uint256.Int).Sub(
		uint256.MustFromBig(c.RewardUpper),
		uint256.MustFromBig(c.RewardLower),
	)
	digest := ethcrypto.Keccak256(c.Seed[:], sponsor[:], recipient[:])
	draw := new(uint256.Int).SetBytes(digest)
	draw.Mod(draw, span)
	reward := new(big.Int).Add(c.RewardLower, draw.ToBig())
	if c.HasBonus() && reward.Cmp(c.BonusThreshold) >= 0 {
		return new(big.Int).Set(c.BonusAmount)
	}
	return reward
}
