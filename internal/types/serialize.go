package types

import (
	"fmt"

	"github.com/LayerTwo-Labs/bitassetsd/internal/codec"
	"github.com/LayerTwo-Labs/bitassetsd/internal/hash"
)

func EncodeOutPoint(w *codec.Writer, o OutPoint) {
	w.WriteTag(uint8(o.Kind))
	switch o.Kind {
	case OutPointRegular:
		w.WriteFixed(o.Txid[:])
		w.WriteUint32(o.Vout)
	case OutPointCoinbase:
		w.WriteFixed(o.MerkleRoot[:])
		w.WriteUint32(o.Vout)
	case OutPointDeposit:
		w.WriteFixed(o.BitcoinOutpoint.Txid[:])
		w.WriteUint32(o.BitcoinOutpoint.Vout)
	}
}

func DecodeOutPoint(r *codec.Reader) OutPoint {
	var o OutPoint
	o.Kind = OutPointKind(r.ReadTag())
	switch o.Kind {
	case OutPointRegular:
		o.Txid, _ = hash.FromBytes(r.ReadFixed(hash.Size))
		o.Vout = r.ReadUint32()
	case OutPointCoinbase:
		o.MerkleRoot, _ = hash.FromBytes(r.ReadFixed(hash.Size))
		o.Vout = r.ReadUint32()
	case OutPointDeposit:
		o.BitcoinOutpoint.Txid, _ = hash.FromBytes(r.ReadFixed(hash.Size))
		o.BitcoinOutpoint.Vout = r.ReadUint32()
	}
	return o
}

func EncodeInPoint(w *codec.Writer, i InPoint) {
	w.WriteTag(uint8(i.Kind))
	switch i.Kind {
	case InPointRegular:
		w.WriteFixed(i.Txid[:])
		w.WriteUint32(i.Vin)
	case InPointWithdrawal:
		w.WriteFixed(i.BitcoinTxid[:])
	}
}

func DecodeInPoint(r *codec.Reader) InPoint {
	var i InPoint
	i.Kind = InPointKind(r.ReadTag())
	switch i.Kind {
	case InPointRegular:
		i.Txid, _ = hash.FromBytes(r.ReadFixed(hash.Size))
		i.Vin = r.ReadUint32()
	case InPointWithdrawal:
		i.BitcoinTxid, _ = hash.FromBytes(r.ReadFixed(hash.Size))
	}
	return i
}

func EncodeAssetId(w *codec.Writer, a AssetId) {
	w.WriteTag(uint8(a.Kind))
	if a.Kind != AssetBitcoin {
		w.WriteFixed(a.Id[:])
	}
}

func DecodeAssetId(r *codec.Reader) AssetId {
	var a AssetId
	a.Kind = AssetKind(r.ReadTag())
	if a.Kind != AssetBitcoin {
		id, _ := hash.FromBytes(r.ReadFixed(hash.Size))
		a.Id = BitAssetId(id)
	}
	return a
}

func encodeOutputContent(w *codec.Writer, c OutputContent) {
	w.WriteTag(uint8(c.Kind))
	switch c.Kind {
	case ContentAmmLpToken:
		w.WriteUint64(c.AmmLpTokenAmount)
	case ContentBitcoin:
		w.WriteUint64(c.BitcoinValue)
	case ContentWithdrawal:
		w.WriteUint64(c.WithdrawalValue)
		w.WriteUint64(c.WithdrawalMainFee)
		w.WriteBytes([]byte(c.WithdrawalMainAddress))
	case ContentBitAsset:
		w.WriteUint64(c.BitAssetAmount)
	case ContentBitAssetControl:
		// no payload: authority is conveyed by identity alone
	case ContentBitAssetReservation:
		w.WriteFixed(c.ReservationCommitment[:])
	case ContentDutchAuctionReceipt:
		// no payload
	}
}

func decodeOutputContent(r *codec.Reader) OutputContent {
	var c OutputContent
	c.Kind = OutputContentKind(r.ReadTag())
	switch c.Kind {
	case ContentAmmLpToken:
		c.AmmLpTokenAmount = r.ReadUint64()
	case ContentBitcoin:
		c.BitcoinValue = r.ReadUint64()
	case ContentWithdrawal:
		c.WithdrawalValue = r.ReadUint64()
		c.WithdrawalMainFee = r.ReadUint64()
		c.WithdrawalMainAddress = string(r.ReadBytes())
	case ContentBitAsset:
		c.BitAssetAmount = r.ReadUint64()
	case ContentBitAssetReservation:
		c.ReservationCommitment, _ = hash.FromBytes(r.ReadFixed(hash.Size))
	}
	return c
}

func EncodeOutput(w *codec.Writer, o Output) {
	w.WriteFixed(o.Address[:])
	encodeOutputContent(w, o.Content)
}

func DecodeOutput(r *codec.Reader) Output {
	var o Output
	addr, _ := addressFromBytes(r.ReadFixed(hash.AddressSize))
	o.Address = addr
	o.Content = decodeOutputContent(r)
	return o
}

func addressFromBytes(b []byte) (hash.Address, error) {
	var a hash.Address
	if len(b) != hash.AddressSize {
		return a, fmt.Errorf("types: expected %d address bytes, got %d", hash.AddressSize, len(b))
	}
	copy(a[:], b)
	return a, nil
}

func encodeBytesUpdate(w *codec.Writer, u BytesUpdate) {
	w.WriteTag(uint8(u.Kind))
	if u.Kind == UpdateSet {
		w.WriteBytes(u.Value)
	}
}

func decodeBytesUpdate(r *codec.Reader) BytesUpdate {
	var u BytesUpdate
	u.Kind = UpdateOpKind(r.ReadTag())
	if u.Kind == UpdateSet {
		u.Value = r.ReadBytes()
	}
	return u
}

func encodeBitAssetDataUpdates(w *codec.Writer, u BitAssetDataUpdates) {
	encodeBytesUpdate(w, u.Commitment)
	encodeBytesUpdate(w, u.SocketAddrV4)
	encodeBytesUpdate(w, u.SocketAddrV6)
	encodeBytesUpdate(w, u.EncryptionPubkey)
	encodeBytesUpdate(w, u.SigningPubkey)
}

func decodeBitAssetDataUpdates(r *codec.Reader) BitAssetDataUpdates {
	return BitAssetDataUpdates{
		Commitment:       decodeBytesUpdate(r),
		SocketAddrV4:     decodeBytesUpdate(r),
		SocketAddrV6:     decodeBytesUpdate(r),
		EncryptionPubkey: decodeBytesUpdate(r),
		SigningPubkey:    decodeBytesUpdate(r),
	}
}

func encodeBitAssetDataInit(w *codec.Writer, d BitAssetDataInit) {
	w.WriteBytes(d.Commitment)
	w.WriteBytes(d.SocketAddrV4)
	w.WriteBytes(d.SocketAddrV6)
	w.WriteBytes(d.EncryptionPubkey)
	w.WriteBytes(d.SigningPubkey)
}

func decodeBitAssetDataInit(r *codec.Reader) BitAssetDataInit {
	return BitAssetDataInit{
		Commitment:       r.ReadBytes(),
		SocketAddrV4:     r.ReadBytes(),
		SocketAddrV6:     r.ReadBytes(),
		EncryptionPubkey: r.ReadBytes(),
		SigningPubkey:    r.ReadBytes(),
	}
}

func encodeDutchAuctionParams(w *codec.Writer, p DutchAuctionParams) {
	w.WriteUint32(p.StartBlock)
	w.WriteUint32(p.Duration)
	EncodeAssetId(w, p.BaseAsset)
	w.WriteUint64(p.BaseAmount)
	EncodeAssetId(w, p.QuoteAsset)
	w.WriteUint64(p.InitialPrice)
	w.WriteUint64(p.FinalPrice)
}

func decodeDutchAuctionParams(r *codec.Reader) DutchAuctionParams {
	var p DutchAuctionParams
	p.StartBlock = r.ReadUint32()
	p.Duration = r.ReadUint32()
	p.BaseAsset = DecodeAssetId(r)
	p.BaseAmount = r.ReadUint64()
	p.QuoteAsset = DecodeAssetId(r)
	p.InitialPrice = r.ReadUint64()
	p.FinalPrice = r.ReadUint64()
	return p
}

func encodeTxData(w *codec.Writer, d *TxData) {
	if d == nil {
		w.WriteTag(uint8(TxDataNone))
		return
	}
	w.WriteTag(uint8(d.Kind))
	switch d.Kind {
	case TxDataBitAssetReservation:
		w.WriteFixed(d.ReservationCommitment[:])
	case TxDataBitAssetRegistration:
		w.WriteFixed(d.RegistrationNameHash[:])
		w.WriteFixed(d.RegistrationRevealedNonce[:])
		encodeBitAssetDataInit(w, d.RegistrationData)
		w.WriteUint64(d.RegistrationInitialSupply)
	case TxDataBitAssetMint:
		w.WriteUint64(d.MintAmount)
	case TxDataBitAssetUpdate:
		encodeBitAssetDataUpdates(w, d.Updates)
	case TxDataAmmMint:
		EncodeAssetId(w, d.AmmAsset0)
		EncodeAssetId(w, d.AmmAsset1)
		w.WriteUint64(d.AmmAmount0)
		w.WriteUint64(d.AmmAmount1)
		w.WriteUint64(d.AmmLpTokenMint)
	case TxDataAmmBurn:
		EncodeAssetId(w, d.AmmAsset0)
		EncodeAssetId(w, d.AmmAsset1)
		w.WriteUint64(d.AmmAmount0)
		w.WriteUint64(d.AmmAmount1)
		w.WriteUint64(d.AmmLpTokenBurn)
	case TxDataAmmSwap:
		EncodeAssetId(w, d.AmmAsset0)
		EncodeAssetId(w, d.AmmAsset1)
		w.WriteBool(d.SwapZeroForOne)
		w.WriteUint64(d.SwapAmountSpent)
		w.WriteUint64(d.SwapAmountReceive)
	case TxDataDutchAuctionCreate:
		encodeDutchAuctionParams(w, d.AuctionParams)
	case TxDataDutchAuctionBid:
		w.WriteFixed(d.AuctionId[:])
		EncodeAssetId(w, d.AuctionSpendAsset)
		EncodeAssetId(w, d.AuctionReceiveAsset)
		w.WriteUint64(d.AuctionQuantity)
		w.WriteUint64(d.AuctionBidSize)
	case TxDataDutchAuctionCollect:
		w.WriteFixed(d.AuctionId[:])
		EncodeAssetId(w, d.CollectAssetOffered)
		EncodeAssetId(w, d.CollectAssetReceive)
		w.WriteUint64(d.CollectAmountOfferedRemaining)
		w.WriteUint64(d.CollectAmountReceived)
	}
}

func decodeTxData(r *codec.Reader) *TxData {
	kind := TxDataKind(r.ReadTag())
	if kind == TxDataNone {
		return nil
	}
	d := &TxData{Kind: kind}
	switch kind {
	case TxDataBitAssetReservation:
		d.ReservationCommitment, _ = hash.FromBytes(r.ReadFixed(hash.Size))
	case TxDataBitAssetRegistration:
		d.RegistrationNameHash, _ = hash.FromBytes(r.ReadFixed(hash.Size))
		d.RegistrationRevealedNonce, _ = hash.FromBytes(r.ReadFixed(hash.Size))
		d.RegistrationData = decodeBitAssetDataInit(r)
		d.RegistrationInitialSupply = r.ReadUint64()
	case TxDataBitAssetMint:
		d.MintAmount = r.ReadUint64()
	case TxDataBitAssetUpdate:
		d.Updates = decodeBitAssetDataUpdates(r)
	case TxDataAmmMint:
		d.AmmAsset0 = DecodeAssetId(r)
		d.AmmAsset1 = DecodeAssetId(r)
		d.AmmAmount0 = r.ReadUint64()
		d.AmmAmount1 = r.ReadUint64()
		d.AmmLpTokenMint = r.ReadUint64()
	case TxDataAmmBurn:
		d.AmmAsset0 = DecodeAssetId(r)
		d.AmmAsset1 = DecodeAssetId(r)
		d.AmmAmount0 = r.ReadUint64()
		d.AmmAmount1 = r.ReadUint64()
		d.AmmLpTokenBurn = r.ReadUint64()
	case TxDataAmmSwap:
		d.AmmAsset0 = DecodeAssetId(r)
		d.AmmAsset1 = DecodeAssetId(r)
		d.SwapZeroForOne = r.ReadBool()
		d.SwapAmountSpent = r.ReadUint64()
		d.SwapAmountReceive = r.ReadUint64()
	case TxDataDutchAuctionCreate:
		d.AuctionParams = decodeDutchAuctionParams(r)
	case TxDataDutchAuctionBid:
		d.AuctionId, _ = hash.FromBytes(r.ReadFixed(hash.Size))
		d.AuctionSpendAsset = DecodeAssetId(r)
		d.AuctionReceiveAsset = DecodeAssetId(r)
		d.AuctionQuantity = r.ReadUint64()
		d.AuctionBidSize = r.ReadUint64()
	case TxDataDutchAuctionCollect:
		d.AuctionId, _ = hash.FromBytes(r.ReadFixed(hash.Size))
		d.CollectAssetOffered = DecodeAssetId(r)
		d.CollectAssetReceive = DecodeAssetId(r)
		d.CollectAmountOfferedRemaining = r.ReadUint64()
		d.CollectAmountReceived = r.ReadUint64()
	}
	return d
}

// EncodeTransaction produces the canonical serialization used for txid
// hashing, persistence, and the Ed25519 signing message.
func EncodeTransaction(t *Transaction) []byte {
	w := codec.NewWriter()
	w.WriteUint32(uint32(len(t.Inputs)))
	for _, in := range t.Inputs {
		EncodeOutPoint(w, in)
	}
	w.WriteUint32(uint32(len(t.Outputs)))
	for _, out := range t.Outputs {
		EncodeOutput(w, out)
	}
	w.WriteBytes(t.Memo)
	encodeTxData(w, t.Data)
	return w.Bytes()
}

// DecodeTransaction parses a transaction from its canonical serialization.
func DecodeTransaction(b []byte) (*Transaction, error) {
	r := codec.NewReader(b)
	t := &Transaction{}
	numIn := r.ReadUint32()
	t.Inputs = make([]OutPoint, numIn)
	for i := range t.Inputs {
		t.Inputs[i] = DecodeOutPoint(r)
	}
	numOut := r.ReadUint32()
	t.Outputs = make([]Output, numOut)
	for i := range t.Outputs {
		t.Outputs[i] = DecodeOutput(r)
	}
	t.Memo = r.ReadBytes()
	t.Data = decodeTxData(r)
	if err := r.Done(); err != nil {
		return nil, fmt.Errorf("types: decode transaction: %w", err)
	}
	return t, nil
}

// EncodeHeader produces the canonical serialization used for block hashing.
func EncodeHeader(h *Header) []byte {
	w := codec.NewWriter()
	w.WriteFixed(h.MerkleRoot[:])
	w.WriteFixed(h.PrevSideHash[:])
	w.WriteFixed(h.PrevMainHash[:])
	return w.Bytes()
}

// EncodeCoinbaseAndTransactions serializes (coinbase, transactions) for the
// merkle-root hash input.
func EncodeCoinbaseAndTransactions(coinbase []Output, txs []*Transaction) []byte {
	w := codec.NewWriter()
	w.WriteUint32(uint32(len(coinbase)))
	for _, o := range coinbase {
		EncodeOutput(w, o)
	}
	w.WriteUint32(uint32(len(txs)))
	for _, t := range txs {
		w.WriteBytes(EncodeTransaction(t))
	}
	return w.Bytes()
}

// EncodeFilledOutput produces the persistence encoding of a resolved UTXO.
// Unlike the wire OutputContent codec above, this one is not tag-dispatched
// by kind: every field is always present, since a decoded FilledOutput must
// round-trip exactly regardless of which fields its kind actually uses.
func EncodeFilledOutput(w *codec.Writer, o FilledOutput) {
	w.WriteFixed(o.Address[:])
	c := o.Content
	w.WriteTag(uint8(c.Kind))
	w.WriteUint64(c.AmmLpTokenAmount)
	w.WriteUint64(c.BitcoinValue)
	w.WriteUint64(c.WithdrawalValue)
	w.WriteUint64(c.WithdrawalMainFee)
	w.WriteBytes([]byte(c.WithdrawalMainAddress))
	w.WriteUint64(c.BitAssetAmount)
	w.WriteFixed(c.BitAssetId[:])
	w.WriteFixed(c.ReservationTxid[:])
	w.WriteFixed(c.ReservationCommitment[:])
}

// DecodeFilledOutput parses a FilledOutput from its persistence encoding.
func DecodeFilledOutput(r *codec.Reader) (FilledOutput, error) {
	var o FilledOutput
	addr, err := addressFromBytes(r.ReadFixed(hash.AddressSize))
	if err != nil {
		return o, err
	}
	o.Address = addr
	o.Content.Kind = OutputContentKind(r.ReadTag())
	o.Content.AmmLpTokenAmount = r.ReadUint64()
	o.Content.BitcoinValue = r.ReadUint64()
	o.Content.WithdrawalValue = r.ReadUint64()
	o.Content.WithdrawalMainFee = r.ReadUint64()
	o.Content.WithdrawalMainAddress = string(r.ReadBytes())
	o.Content.BitAssetAmount = r.ReadUint64()
	id, err := hash.FromBytes(r.ReadFixed(hash.Size))
	if err != nil {
		return o, err
	}
	o.Content.BitAssetId = BitAssetId(id)
	if o.Content.ReservationTxid, err = hash.FromBytes(r.ReadFixed(hash.Size)); err != nil {
		return o, err
	}
	if o.Content.ReservationCommitment, err = hash.FromBytes(r.ReadFixed(hash.Size)); err != nil {
		return o, err
	}
	return o, r.Err()
}

func EncodeAuthorization(w *codec.Writer, a Authorization) {
	w.WriteFixed(a.VerifyingKey[:])
	w.WriteFixed(a.Signature[:])
}

func DecodeAuthorization(r *codec.Reader) Authorization {
	var a Authorization
	copy(a.VerifyingKey[:], r.ReadFixed(32))
	copy(a.Signature[:], r.ReadFixed(64))
	return a
}

// EncodeAuthorizedTransaction produces the persistence encoding of a
// mempool entry: the transaction plus one authorization per input.
func EncodeAuthorizedTransaction(t *AuthorizedTransaction) []byte {
	w := codec.NewWriter()
	w.WriteBytes(EncodeTransaction(t.Transaction))
	w.WriteUint32(uint32(len(t.Authorizations)))
	for _, a := range t.Authorizations {
		EncodeAuthorization(w, a)
	}
	return w.Bytes()
}

// DecodeAuthorizedTransaction parses a mempool entry from its persistence
// encoding.
func DecodeAuthorizedTransaction(b []byte) (*AuthorizedTransaction, error) {
	r := codec.NewReader(b)
	tx, err := DecodeTransaction(r.ReadBytes())
	if err != nil {
		return nil, err
	}
	n := r.ReadUint32()
	auths := make([]Authorization, n)
	for i := range auths {
		auths[i] = DecodeAuthorization(r)
	}
	if err := r.Done(); err != nil {
		return nil, fmt.Errorf("types: decode authorized transaction: %w", err)
	}
	return &AuthorizedTransaction{Transaction: tx, Authorizations: auths}, nil
}
