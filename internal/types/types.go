// Package types defines the ledger's wire and in-memory data model:
// addresses, outpoints, asset identities, output content, transactions, and
// blocks. Output content and transaction data are closed tagged unions,
// modeled as discriminated structs with exhaustive switch dispatch rather
// than interfaces, matching spec.md §9's "favor a sum type... over dynamic
// dispatch."
package types

import (
	"bytes"

	"github.com/LayerTwo-Labs/bitassetsd/internal/hash"
)

// Amount is an unsigned satoshi count. All arithmetic on it is checked by
// callers; overflow/underflow are explicit errors, never wraparound.
type Amount = uint64

// OutPointKind discriminates the outpoint union.
type OutPointKind uint8

const (
	OutPointRegular OutPointKind = iota
	OutPointCoinbase
	OutPointDeposit
)

// BitcoinOutPoint identifies an output on the mainchain.
type BitcoinOutPoint struct {
	Txid hash.Hash
	Vout uint32
}

// OutPoint identifies a UTXO: a regular transaction output, a block
// coinbase output, or a mainchain deposit.
type OutPoint struct {
	Kind            OutPointKind
	Txid            hash.Hash // Regular
	Vout            uint32    // Regular, Coinbase
	MerkleRoot      hash.Hash // Coinbase
	BitcoinOutpoint BitcoinOutPoint
}

// InPointKind discriminates the inpoint union.
type InPointKind uint8

const (
	InPointRegular InPointKind = iota
	InPointWithdrawal
)

// InPoint identifies the consumer of a spent output: a transaction input,
// or a withdrawal bundle transaction on the mainchain.
type InPoint struct {
	Kind        InPointKind
	Txid        hash.Hash
	Vin         uint32
	BitcoinTxid hash.Hash
}

// BitAssetId is the content-addressed identity of a user-issued asset:
// BLAKE3 of the plain (off-chain) name bytes.
type BitAssetId hash.Hash

func (id BitAssetId) String() string { return hash.Hash(id).String() }

// AssetKind discriminates the asset union. The declared order is load
// bearing: it defines the total order AssetId.Less uses to canonicalize AMM
// pool pair keys.
type AssetKind uint8

const (
	AssetBitcoin AssetKind = iota
	AssetBitAsset
	AssetBitAssetControl
)

// AssetId identifies a fungible unit of value on the ledger: native
// Bitcoin, a BitAsset balance, or a BitAsset's control-coin authority.
type AssetId struct {
	Kind AssetKind
	Id   BitAssetId // zero for AssetBitcoin
}

// String renders an asset id for logging and error messages.
func (a AssetId) String() string {
	switch a.Kind {
	case AssetBitcoin:
		return "bitcoin"
	case AssetBitAssetControl:
		return "bitasset-control:" + a.Id.String()
	default:
		return "bitasset:" + a.Id.String()
	}
}

// Less implements the total order Bitcoin < BitAsset(_) < BitAssetControl(_),
// then lexicographic on id.
func (a AssetId) Less(b AssetId) bool {
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}
	return bytes.Compare(a.Id[:], b.Id[:]) < 0
}

// Canonicalize returns (a, b) reordered so the first element is Less the
// second, the canonical AMM pool pair ordering.
func Canonicalize(a, b AssetId) (AssetId, AssetId) {
	if a.Less(b) {
		return a, b
	}
	return b, a
}

// OutputContentKind discriminates the output content union.
type OutputContentKind uint8

const (
	ContentAmmLpToken OutputContentKind = iota
	ContentBitcoin
	ContentWithdrawal
	ContentBitAsset
	ContentBitAssetControl
	ContentBitAssetReservation
	ContentDutchAuctionReceipt
)

// OutputContent is the declared (unresolved) content of a transaction
// output as written by its author.
type OutputContent struct {
	Kind OutputContentKind

	AmmLpTokenAmount uint64

	BitcoinValue Amount

	WithdrawalValue       Amount
	WithdrawalMainFee     Amount
	WithdrawalMainAddress string

	BitAssetAmount uint64

	ReservationCommitment hash.Hash
}

// Output pairs declared content with its owning address.
type Output struct {
	Address hash.Address
	Content OutputContent
}

// FilledOutputContent is OutputContent with BitAsset/BitAssetControl
// identities resolved and reservation identity carried alongside its
// commitment — the form the validator answers "which BitAsset does this
// UTXO refer to" from without a second lookup.
type FilledOutputContent struct {
	Kind OutputContentKind

	AmmLpTokenAmount uint64

	BitcoinValue Amount

	WithdrawalValue       Amount
	WithdrawalMainFee     Amount
	WithdrawalMainAddress string

	BitAssetAmount uint64
	BitAssetId     BitAssetId

	ReservationTxid       hash.Hash
	ReservationCommitment hash.Hash
}

// FilledOutput is a UTXO: an output together with its resolved content.
type FilledOutput struct {
	Address hash.Address
	Content FilledOutputContent
}

// TxDataKind discriminates the at-most-one domain operation a transaction
// may carry.
type TxDataKind uint8

const (
	TxDataNone TxDataKind = iota
	TxDataBitAssetReservation
	TxDataBitAssetRegistration
	TxDataBitAssetMint
	TxDataBitAssetUpdate
	TxDataAmmMint
	TxDataAmmBurn
	TxDataAmmSwap
	TxDataDutchAuctionCreate
	TxDataDutchAuctionBid
	TxDataDutchAuctionCollect
)

// UpdateOpKind discriminates a per-field BitAsset update operation.
type UpdateOpKind uint8

const (
	UpdateRetain UpdateOpKind = iota
	UpdateDelete
	UpdateSet
)

// BytesUpdate is a per-field update operation over an optional byte value.
type BytesUpdate struct {
	Kind  UpdateOpKind
	Value []byte
}

// BitAssetDataUpdates carries one update operation per mutable BitAsset
// field; total supply is mutated only via TxDataBitAssetMint.
type BitAssetDataUpdates struct {
	Commitment       BytesUpdate
	SocketAddrV4     BytesUpdate
	SocketAddrV6     BytesUpdate
	EncryptionPubkey BytesUpdate
	SigningPubkey    BytesUpdate
}

// BitAssetDataInit is the initial value of every mutable BitAsset field, as
// declared by a registration transaction.
type BitAssetDataInit struct {
	Commitment       []byte
	SocketAddrV4     []byte
	SocketAddrV6     []byte
	EncryptionPubkey []byte
	SigningPubkey    []byte
}

// DutchAuctionParams are the immutable parameters of a Dutch auction, as
// declared by a DutchAuctionCreate transaction.
type DutchAuctionParams struct {
	StartBlock   uint32
	Duration     uint32
	BaseAsset    AssetId
	BaseAmount   uint64
	QuoteAsset   AssetId
	InitialPrice uint64
	FinalPrice   uint64
}

// TxData is the closed union of domain operations a transaction may carry.
// Only the fields relevant to Kind are meaningful.
type TxData struct {
	Kind TxDataKind

	ReservationCommitment hash.Hash

	RegistrationNameHash      hash.Hash
	RegistrationRevealedNonce hash.Hash
	RegistrationData          BitAssetDataInit
	RegistrationInitialSupply uint64

	MintAmount uint64

	Updates BitAssetDataUpdates

	AmmAsset0      AssetId
	AmmAsset1      AssetId
	AmmAmount0     uint64
	AmmAmount1     uint64
	AmmLpTokenMint uint64
	AmmLpTokenBurn uint64

	SwapZeroForOne    bool
	SwapAmountSpent   uint64
	SwapAmountReceive uint64

	AuctionParams       DutchAuctionParams
	AuctionId           hash.Hash
	AuctionSpendAsset   AssetId
	AuctionReceiveAsset AssetId
	AuctionQuantity     uint64
	AuctionBidSize      uint64

	CollectAssetOffered           AssetId
	CollectAssetReceive           AssetId
	CollectAmountOfferedRemaining uint64
	CollectAmountReceived         uint64
}

// Transaction is the unsigned transaction body: inputs, outputs, an
// arbitrary memo, and at most one domain operation.
type Transaction struct {
	Inputs  []OutPoint
	Outputs []Output
	Memo    []byte
	Data    *TxData
}

// Txid is BLAKE3 of the transaction's canonical serialization.
func (t *Transaction) Txid() hash.Hash {
	return hash.Sum(EncodeTransaction(t))
}

// Authorization is an Ed25519 signature over a transaction's canonical
// serialization, associated with one spent input.
type Authorization struct {
	VerifyingKey [32]byte
	Signature    [64]byte
}

// AuthorizedTransaction pairs a transaction with one authorization per
// input, in input order.
type AuthorizedTransaction struct {
	Transaction    *Transaction
	Authorizations []Authorization
}

// Header is the block header: the merkle root over the body, the sidechain
// parent hash, and the mainchain block the sidechain block commits to.
type Header struct {
	MerkleRoot   hash.Hash
	PrevSideHash hash.Hash
	PrevMainHash hash.Hash
}

// Hash is BLAKE3 of the header's canonical serialization.
func (h *Header) Hash() hash.Hash {
	return hash.Sum(EncodeHeader(h))
}

// Body is the block body: coinbase outputs, transactions, and the
// authorizations list flattened across all transactions in body order.
type Body struct {
	Coinbase       []Output
	Transactions   []*Transaction
	Authorizations []Authorization
}

// ComputeMerkleRoot hashes the coinbase and transaction list together. This
// is not a Merkle tree: the original computes merkle_root this way and this
// repo preserves that behavior rather than upgrading it, per spec.md's
// open-question instruction to treat whatever function is chosen as the
// contract.
func ComputeMerkleRoot(b *Body) hash.Hash {
	return hash.Sum(EncodeCoinbaseAndTransactions(b.Coinbase, b.Transactions))
}

// Block is a fully-formed sidechain block.
type Block struct {
	Header Header
	Body   Body
	Height uint32
}
