package market

// Withdrawal discipline: the tracked balance is zeroed before the outbound
// transfer is attempted, so a re-entrant call cannot withdraw twice. A failed
// outbound transfer aborts the operation, and the snapshot revert restores
// the zeroed balance together with everything else.

// WithdrawNative pays out the caller's pending native balance. Deliberately
// not blocked by pause so users are never locked out of their own escrowed
// funds.
func (e *Engine) WithdrawNative(caller [20]byte) error {
	return e.run(func() error {
		amount, err := e.state.PendingNativeTake(caller)
		if err != nil {
			return err
		}
		if amount.Sign() == 0 {
			return ErrNothingToWithdraw
		}
		if err := e.bank.Transfer(e.self, caller, amount); err != nil {
			return err
		}
		e.emit(NewWithdrawalEvent(caller, NativeCurrency, amount, WithdrawalPending))
		return nil
	})
}

// WithdrawToken pays out the caller's pending balance in the given token.
// Available while paused, like WithdrawNative.
func (e *Engine) WithdrawToken(caller, token [20]byte) error {
	return e.run(func() error {
		amount, err := e.state.PendingTokenTake(token, caller)
		if err != nil {
			return err
		}
		if amount.Sign() == 0 {
			return ErrNothingToWithdraw
		}
		if err := e.tokens.Transfer(token, caller, amount); err != nil {
			return err
		}
		e.emit(NewWithdrawalEvent(caller, token, amount, WithdrawalPending))
		return nil
	})
}

// WithdrawAccumulatedFees pays the accumulated platform fees for the given
// currency (NativeCurrency for the native coin) to the fee recipient. Owner
// only.
func (e *Engine) WithdrawAccumulatedFees(caller, currency [20]byte) error {
	return e.run(func() error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		amount, err := e.state.FeeTake(currency)
		if err != nil {
			return err
		}
		if amount.Sign() == 0 {
			return ErrNothingToWithdraw
		}
		if currency == NativeCurrency {
			if err := e.bank.Transfer(e.self, e.feeRecipient, amount); err != nil {
				return err
			}
		} else {
			if err := e.tokens.Transfer(currency, e.feeRecipient, amount); err != nil {
				return err
			}
		}
		e.emit(NewWithdrawalEvent(e.feeRecipient, currency, amount, WithdrawalFees))
		return nil
	})
}

// WithdrawStrandedNative recovers native funds sitting under the engine
// address, e.g. unsolicited transfers. Owner only. The sweep takes the whole
// held balance, not merely the surplus over tracked obligations; pending
// refunds, escrowed bids and accumulated fees are swept along with it.
func (e *Engine) WithdrawStrandedNative(caller [20]byte) error {
	return e.run(func() error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		balance, err := e.bank.BalanceOf(e.self)
		if err != nil {
			return err
		}
		if balance == nil || balance.Sign() == 0 {
			return ErrNothingToWithdraw
		}
		if err := e.bank.Transfer(e.self, e.owner, balance); err != nil {
			return err
		}
		e.emit(NewWithdrawalEvent(e.owner, NativeCurrency, balance, WithdrawalStranded))
		return nil
	})
}

// WithdrawStrandedToken recovers the engine's whole balance in the given
// token. Owner only; same full-balance sweep semantics as the native variant.
func (e *Engine) WithdrawStrandedToken(caller, token [20]byte) error {
	return e.run(func() error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		balance, err := e.tokens.BalanceOf(token, e.self)
		if err != nil {
			return err
		}
		if balance == nil || balance.Sign() == 0 {
			return ErrNothingToWithdraw
		}
		if err := e.tokens.Transfer(token, e.owner, balance); err != nil {
			return err
		}
		e.emit(NewWithdrawalEvent(e.owner, token, balance, WithdrawalStranded))
		return nil
	})
}
