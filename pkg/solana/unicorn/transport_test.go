package unicorn

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	t.Run("Deadline is a timeout", func(t *testing.T) {
		err := classify("submit", fmt.Errorf("post: %w", context.DeadlineExceeded))
		assert.Equal(t, KindTimeout, err.Kind)
		assert.True(t, Retryable(err))
	})

	t.Run("Missing account", func(t *testing.T) {
		err := classify("fetch", rpc.ErrNotFound)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.False(t, Retryable(err))
	})

	t.Run("Program rejection keeps diagnostics", func(t *testing.T) {
		rpcErr := &jsonrpc.RPCError{
			Code:    -32002,
			Message: "Transaction simulation failed: Error processing Instruction 0: custom program error: 0x1",
			Data: map[string]interface{}{
				"err":  map[string]interface{}{"InstructionError": []interface{}{0, map[string]interface{}{"Custom": 1}}},
				"logs": []interface{}{"Program log: goal reached", "Program failed"},
			},
		}
		err := classify("submit", rpcErr)
		assert.ErrorIs(t, err, ErrRemoteRejected)
		assert.Contains(t, err.Msg, "custom program error: 0x1")
		assert.Contains(t, err.Msg, "FundingGoalReached")
		assert.Contains(t, err.Msg, "Program log: goal reached")
		assert.False(t, Retryable(err))
	})

	t.Run("Node behind is transient", func(t *testing.T) {
		err := classify("fetch", &jsonrpc.RPCError{Code: -32005, Message: "Node is behind by 42 slots"})
		assert.Equal(t, KindTransport, err.Kind)
		assert.Contains(t, err.Msg, "Node is behind")
		assert.True(t, Retryable(err))
	})

	t.Run("Simulation logs mark a rejection", func(t *testing.T) {
		err := classify("submit", &jsonrpc.RPCError{
			Code:    -32603,
			Message: "failed",
			Data:    map[string]interface{}{"logs": []interface{}{"Program failed"}},
		})
		assert.Equal(t, KindRemoteRejected, err.Kind)
	})

	t.Run("Invalid params are refused", func(t *testing.T) {
		err := classify("fetch", &jsonrpc.RPCError{Code: -32602, Message: "Invalid param"})
		assert.Equal(t, KindRemoteRejected, err.Kind)
		assert.False(t, Retryable(err))
	})

	t.Run("Anything else is transport", func(t *testing.T) {
		err := classify("fetch", errors.New("connection refused"))
		assert.ErrorIs(t, err, ErrTransport)
		assert.True(t, Retryable(err))
	})

	t.Run("Already classified passes through", func(t *testing.T) {
		orig := invalidInput("submit", "no signers")
		assert.Same(t, orig, classify("submit", fmt.Errorf("wrapped: %w", orig)))
	})
}

func TestReached(t *testing.T) {
	assert.True(t, reached(rpc.ConfirmationStatusFinalized, rpc.CommitmentConfirmed))
	assert.True(t, reached(rpc.ConfirmationStatusConfirmed, rpc.CommitmentConfirmed))
	assert.False(t, reached(rpc.ConfirmationStatusProcessed, rpc.CommitmentConfirmed))
	assert.False(t, reached("", rpc.CommitmentProcessed))
}

func TestDescribeTxError(t *testing.T) {
	s := describeTxError(map[string]interface{}{"InstructionError": []interface{}{0, map[string]interface{}{"Custom": 0}}})
	assert.Contains(t, s, "ProjectNotActive")

	assert.Equal(t, `"AccountInUse"`, describeTxError("AccountInUse"))
	assert.Equal(t, "", ProgramErrorName(99))
}

func TestErrorFormatting(t *testing.T) {
	err := newError(KindRemoteRejected, "confirm", "custom 0", errors.New("inner"))
	assert.Equal(t, "confirm: RemoteRejected: custom 0: inner", err.Error())
	assert.Equal(t, "AddressDerivationFailure", KindAddressDerivation.String())
}
