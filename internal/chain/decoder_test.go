package chain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	packAddr  = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	buyerAddr = common.HexToAddress("0x00000000000000000000000000000000000000bb")
)

func packOpenedLog(t *testing.T, emitter common.Address, tokenID, artID int64, fid string) types.Log {
	t.Helper()
	data, err := PackContractABI.Events["PackOpened"].Inputs.NonIndexed().Pack(
		big.NewInt(tokenID), big.NewInt(artID), fid,
	)
	require.NoError(t, err)
	return types.Log{
		Address: emitter,
		Topics:  []common.Hash{PackOpenedID, common.BytesToHash(buyerAddr.Bytes())},
		Data:    data,
	}
}

func TestDecodeMint(t *testing.T) {
	d := NewDecoder(packAddr)

	ev, ok := d.DecodeMint(packOpenedLog(t, packAddr, 351, 42, "12152"))
	require.True(t, ok)
	assert.Equal(t, buyerAddr.Hex(), ev.Buyer)
	assert.Equal(t, uint64(351), ev.TokenID)
	assert.Equal(t, uint64(42), ev.ArtIndex)
	assert.Equal(t, "12152", ev.ExternalID)
}

func TestDecodeMintRejectsOtherEmitter(t *testing.T) {
	d := NewDecoder(packAddr)

	other := common.HexToAddress("0x00000000000000000000000000000000000000cc")
	_, ok := d.DecodeMint(packOpenedLog(t, other, 1, 1, ""))
	assert.False(t, ok)
}

func TestDecodeMintZeroAddressDisablesEmitterCheck(t *testing.T) {
	d := NewDecoder(common.Address{})

	other := common.HexToAddress("0x00000000000000000000000000000000000000cc")
	_, ok := d.DecodeMint(packOpenedLog(t, other, 1, 1, ""))
	assert.True(t, ok)
}

func TestDecodeMintRejectsForeignTopics(t *testing.T) {
	d := NewDecoder(packAddr)

	lg := packOpenedLog(t, packAddr, 1, 1, "")
	lg.Topics[0] = common.HexToHash("0xdeadbeef")
	_, ok := d.DecodeMint(lg)
	assert.False(t, ok)

	lg = packOpenedLog(t, packAddr, 1, 1, "")
	lg.Topics = lg.Topics[:1]
	_, ok = d.DecodeMint(lg)
	assert.False(t, ok)
}

func TestDecodeMintRejectsMalformedData(t *testing.T) {
	d := NewDecoder(packAddr)

	lg := packOpenedLog(t, packAddr, 1, 1, "")
	lg.Data = lg.Data[:8]
	_, ok := d.DecodeMint(lg)
	assert.False(t, ok)
}

func TestDecodeMintsFiltersAndPreservesOrder(t *testing.T) {
	d := NewDecoder(packAddr)

	transfer := types.Log{
		Address: packAddr,
		Topics:  []common.Hash{common.HexToHash("0x01"), {}, {}},
	}
	logs := []types.Log{
		packOpenedLog(t, packAddr, 10, 3, "fid"),
		transfer,
		packOpenedLog(t, packAddr, 11, 4, "fid"),
	}

	events := d.DecodeMints(logs)
	require.Len(t, events, 2)
	assert.Equal(t, uint64(10), events[0].TokenID)
	assert.Equal(t, uint64(11), events[1].TokenID)
}

func TestCallDataEncoding(t *testing.T) {
	approve, err := ApproveCallData(packAddr, big.NewInt(600000))
	require.NoError(t, err)
	assert.Equal(t, PaymentTokenABI.Methods["approve"].ID, approve[:4])

	open, err := OpenPacksCallData(big.NewInt(2), "12152")
	require.NoError(t, err)
	assert.Equal(t, PackContractABI.Methods["openPacks"].ID, open[:4])
}
