package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

type rpcContext struct {
	Slot uint64 `json:"slot"`
}

type accountInfoResult struct {
	Context rpcContext   `json:"context"`
	Value   *accountInfo `json:"value"`
}

type accountInfo struct {
	Owner      string          `json:"owner"`
	Lamports   uint64          `json:"lamports"`
	Executable bool            `json:"executable"`
	Data       json.RawMessage `json:"data"`
	RentEpoch  json.Number     `json:"rentEpoch"`
	Space      uint64          `json:"space"`
}

type tokenAccountsResult struct {
	Context rpcContext      `json:"context"`
	Value   *[]tokenAccount `json:"value"`
}

type tokenAccount struct {
	Pubkey  string `json:"pubkey"`
	Account struct {
		Data json.RawMessage `json:"data"`
	} `json:"account"`
}

type parsedTokenData struct {
	Program string `json:"program"`
	Parsed  struct {
		Type string `json:"type"`
		Info struct {
			Mint        string       `json:"mint"`
			Owner       string       `json:"owner"`
			TokenAmount *tokenAmount `json:"tokenAmount"`
		} `json:"info"`
	} `json:"parsed"`
}

type tokenAmount struct {
	Amount         string `json:"amount"`
	Decimals       int32  `json:"decimals"`
	UIAmountString string `json:"uiAmountString"`
}

var (
	errNotParsed     = errors.New("account data is not jsonParsed")
	errMissingAmount = errors.New("token amount missing")
	errMintMismatch  = errors.New("account belongs to another mint")
)

// quantity returns the account's balance in whole-token units.
// Raw base-unit amounts are shifted by the mint decimals, never read from floats.
func (a tokenAccount) quantity(mint string) (decimal.Decimal, error) {
	var data parsedTokenData
	if err := json.Unmarshal(a.Account.Data, &data); err != nil {
		return decimal.Zero, errNotParsed
	}

	info := data.Parsed.Info
	if info.TokenAmount == nil || info.TokenAmount.Amount == "" {
		return decimal.Zero, errMissingAmount
	}
	if info.Mint != mint {
		return decimal.Zero, errMintMismatch
	}

	raw, err := decimal.NewFromString(info.TokenAmount.Amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", info.TokenAmount.Amount, err)
	}
	if raw.IsNegative() || !raw.Equal(raw.Truncate(0)) {
		return decimal.Zero, fmt.Errorf("invalid amount %q", info.TokenAmount.Amount)
	}
	if info.TokenAmount.Decimals < 0 {
		return decimal.Zero, fmt.Errorf("invalid decimals %d", info.TokenAmount.Decimals)
	}

	return raw.Shift(-info.TokenAmount.Decimals), nil
}

// decodeStrict decodes into the typed schema; null or empty results are errors
func decodeStrict(raw json.RawMessage, out any) error {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return errors.New("empty result")
	}
	return json.Unmarshal(raw, out)
}
