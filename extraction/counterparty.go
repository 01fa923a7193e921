package extraction

// ChooseCounterparty picks the supplier party out of the extracted parties.
// A tax invoice names both the issuer and the buyer; the owner's own tax-id
// identifies which one we are, and the counterparty is the other one.
// With no owner tax-id the first party wins; nil when nothing was extracted.
func ChooseCounterparty(parties []Party, ownerTaxId string) *Party {
	if len(parties) == 0 {
		return nil
	}
	owner := NormalizeTaxId(ownerTaxId)
	if owner == "" {
		return &parties[0]
	}
	for i := range parties {
		if NormalizeTaxId(parties[i].TaxId) != owner {
			return &parties[i]
		}
	}
	return nil
}
