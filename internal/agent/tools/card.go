package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Treamyracle/INFOMEDIA/internal/vault"
)

// PhysicalCardName is the tool name the agent calls.
const PhysicalCardName = "request_kartu_fisik"

// PhysicalCard accepts any complete name, address and phone. It performs no
// identity check against the account store.
type PhysicalCard struct{}

// NewPhysicalCard creates the tool.
func NewPhysicalCard() *PhysicalCard { return &PhysicalCard{} }

var physicalCardParams = []Param{
	{Name: "nama_tag", Label: vault.LabelPerson, Description: "Tag for the recipient's name."},
	{Name: "alamat_tag", Label: vault.LabelAddress, Description: "Tag for the delivery address."},
	{Name: "phone_tag", Label: vault.LabelPhone, Description: "Tag for the recipient's phone number."},
}

func (t *PhysicalCard) Name() string { return PhysicalCardName }

func (t *PhysicalCard) Description() string {
	return "Request kartu debit fisik. Memerlukan Nama, Alamat Pengiriman, dan No HP penerima."
}

func (t *PhysicalCard) Params() []Param { return physicalCardParams }

func (t *PhysicalCard) InputSchema() json.RawMessage { return paramSchema(physicalCardParams) }

func (t *PhysicalCard) Execute(_ context.Context, s *vault.Session, args map[string]string) Outcome {
	v, ok := resolve(s, physicalCardParams, args)
	if !ok {
		return Failure(ReasonIncompleteInput, "Gagal: Data Nama, Alamat, atau No HP tidak lengkap.")
	}
	return Processing(
		fmt.Sprintf("Permintaan kartu fisik atas nama '%s' diterima. Kartu akan dikirim ke '%s'. Kurir akan menghubungi %s.",
			v["nama_tag"], v["alamat_tag"], v["phone_tag"]),
		map[string]any{
			"name":    v["nama_tag"],
			"address": v["alamat_tag"],
			"phone":   v["phone_tag"],
		},
	)
}
