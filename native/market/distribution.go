package market

import "math/big"

var feeDenominator = big.NewInt(10_000)

// distribute splits a settlement amount into platform fee, royalty and
// seller payout, then performs the transfers. The fee accrues to the
// accumulator; royalty and payout are pushed immediately.
//
// Edge-case policy: a royalty at or above the full price is rejected
// outright. If fee and royalty together still reach the price, the royalty
// is capped at the price and the fee is forced to the remainder — the
// royalty is prioritised over the fee in the degenerate case. The seller can
// end up with zero, never with a negative payout.
func (e *Engine) distribute(assetClass [20]byte, instanceID *big.Int, seller [20]byte, currency [20]byte, price *big.Int) error {
	fee := new(big.Int).Mul(price, new(big.Int).SetUint64(uint64(e.feeBps)))
	fee.Div(fee, feeDenominator)

	royalty := big.NewInt(0)
	var recipient [20]byte
	supported, err := e.royaltySupported(assetClass)
	if err != nil {
		return err
	}
	if supported {
		rcpt, amount, err := e.royalties.RoyaltyInfo(assetClass, instanceID, price)
		if err == nil && amount != nil && amount.Sign() > 0 {
			royalty = new(big.Int).Set(amount)
			recipient = rcpt
		}
	}
	if royalty.Cmp(price) >= 0 {
		royalty = big.NewInt(0)
	}
	if new(big.Int).Add(fee, royalty).Cmp(price) >= 0 {
		if fee.Cmp(price) >= 0 {
			fee = big.NewInt(0)
		}
		if royalty.Cmp(price) >= 0 {
			royalty = big.NewInt(0)
		}
		if new(big.Int).Add(fee, royalty).Cmp(price) >= 0 {
			if royalty.Cmp(price) > 0 {
				royalty = new(big.Int).Set(price)
			}
			fee = new(big.Int).Sub(price, royalty)
		}
	}
	payout := new(big.Int).Sub(price, royalty)
	payout.Sub(payout, fee)

	if fee.Sign() > 0 {
		if err := e.state.FeeAdd(currency, fee); err != nil {
			return err
		}
		e.emit(NewFeePaidEvent(assetClass, instanceID, currency, fee))
	}
	if royalty.Sign() > 0 {
		if err := e.pay(currency, recipient, royalty); err != nil {
			return err
		}
		e.emit(NewRoyaltyPaidEvent(assetClass, instanceID, recipient, currency, royalty))
	}
	if payout.Sign() > 0 {
		if err := e.pay(currency, seller, payout); err != nil {
			return err
		}
	}
	return nil
}

// pay pushes funds from engine custody to a recipient in the given currency.
func (e *Engine) pay(currency, to [20]byte, amount *big.Int) error {
	if currency == NativeCurrency {
		return e.bank.Transfer(e.self, to, amount)
	}
	return e.tokens.Transfer(currency, to, amount)
}

// royaltySupported memoises whether the asset class answers royalty
// inquiries. The probe runs once per asset class; the recorded answer is
// never refreshed, even if the class later gains or loses the capability. A
// failed probe records "unsupported".
func (e *Engine) royaltySupported(assetClass [20]byte) (bool, error) {
	checked, supported, err := e.state.RoyaltySupportGet(assetClass)
	if err != nil {
		return false, err
	}
	if checked {
		return supported, nil
	}
	result := false
	if e.royalties != nil {
		ok, err := e.royalties.Supports(assetClass, RoyaltyCapability)
		if err == nil {
			result = ok
		}
	}
	if err := e.state.RoyaltySupportPut(assetClass, result); err != nil {
		return false, err
	}
	return result, nil
}
