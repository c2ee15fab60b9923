package evmprobe

import (
	"errors"
	"reflect"
	"testing"
)

func TestCandidateTables(t *testing.T) {
	tests := []struct {
		set   CandidateSet
		names []string
		sig   string
	}{
		{CurrentRound, []string{"currentRound"}, "currentRound()"},
		{PotDirect, []string{"pot", "getBalance"}, "pot()"},
		{PotByRound, []string{"pot", "getPot", "potOf", "pool", "poolOf"}, "pot(uint256)"},
		{RoundOpen, []string{"isOpen", "isRoundOpen", "isActive", "isRunning", "open"}, "isOpen()"},
		{WinnerDirect, []string{"winner", "getWinner", "lastWinner"}, "winner()"},
		{WinnerByRound, []string{"winnerOf", "getWinnerOf"}, "winnerOf(uint256)"},
		{StartRound, []string{"start", "startNextRound", "newRound", "openRound"}, "start()"},
	}

	for _, tt := range tests {
		t.Run(tt.set.Capability, func(t *testing.T) {
			if got := tt.set.Names(); !reflect.DeepEqual(got, tt.names) {
				t.Errorf("Expected %v, got %v", tt.names, got)
			}
			if got := tt.set.Candidates[0].Signature(); got != tt.sig {
				t.Errorf("Expected first signature %s, got %s", tt.sig, got)
			}
		})
	}
}

func TestWalletFunctions(t *testing.T) {
	if got := DepositERC20.Signature(); got != "depositErc20(address,uint256)" {
		t.Errorf("Unexpected signature %s", got)
	}
	if got := WithdrawERC20.Signature(); got != "withdrawErc20(address,uint256)" {
		t.Errorf("Unexpected signature %s", got)
	}
}

func TestFunctionsFromABI(t *testing.T) {
	t.Run("erc20", func(t *testing.T) {
		for _, name := range []string{"name", "symbol", "decimals", "balanceOf", "allowance", "approve", "transfer", "transferFrom"} {
			fn, ok := ERC20[name]
			if !ok {
				t.Errorf("Missing %s", name)
				continue
			}
			if fn.Name() != name {
				t.Errorf("Expected name %s, got %s", name, fn.Name())
			}
		}
		if got := ERC20["decimals"].Outputs(); !reflect.DeepEqual(got, []string{TypeUint8}) {
			t.Errorf("Expected uint8 decimals, got %v", got)
		}
	})

	t.Run("unsupported type", func(t *testing.T) {
		abiJSON := `[{"name":"f","type":"function","inputs":[{"name":"x","type":"int256"}],"outputs":[]}]`
		if _, err := FunctionsFromABI(abiJSON); !errors.Is(err, ErrUnsupportedType) {
			t.Errorf("Expected ErrUnsupportedType, got %v", err)
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		if _, err := FunctionsFromABI("{"); err == nil {
			t.Error("Expected error for invalid JSON")
		}
	})
}
