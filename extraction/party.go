package extraction

import (
	"regexp"
	"strings"
)

type PartyRole string

const (
	RoleEmitter  PartyRole = "emitter"
	RoleReceiver PartyRole = "receiver"
	RoleUnknown  PartyRole = "unknown"
)

// Party is an identity block lifted from document text. Transient: consumed by
// the counterparty chooser, never persisted directly. TaxId is always
// checksum-valid; LegalName and Address stay empty when no rule matched.
type Party struct {
	TaxId     string
	LegalName string
	Address   string
	Role      PartyRole
}

// partyWindow is how many lines around a tax-id are searched for identity fields.
const partyWindow = 10

// addressScanLines is how far below an address label the fallback scan reaches.
const addressScanLines = 5

var legalNameLabels = []string{
	"RAZON SOCIAL", "RAZÓN SOCIAL",
	"DENOMINACION", "DENOMINACIÓN",
	"APELLIDO Y NOMBRE",
	"SEÑORES", "SENORES",
}

var addressLabels = []string{
	"DOMICILIO COMERCIAL", "DOMICILIO FISCAL", "DOMICILIO",
	"DIRECCION", "DIRECCIÓN",
}

var streetKeywords = []string{
	"CALLE", "AVENIDA", "AV.", "AV ", "RUTA", "PISO", "DEPTO", "KM", "BARRIO", "LOCAL",
}

// excludedKeywords are common invoice boilerplate lines that must never be
// taken as a legal name by the heuristic rule.
var excludedKeywords = []string{
	"ORIGINAL", "DUPLICADO", "TRIPLICADO",
	"FACTURA", "RECIBO", "TICKET", "COMPROBANTE", "PRESUPUESTO",
	"NOTA DE CREDITO", "NOTA DE CRÉDITO", "NOTA DE DEBITO", "NOTA DE DÉBITO",
	"RESPONSABLE INSCRIPTO", "RESPONSABLE MONOTRIBUTO", "MONOTRIBUTO",
	"CONSUMIDOR FINAL", "IVA", "EXENTO",
	"PUNTO DE VENTA", "FECHA", "CODIGO", "CÓDIGO", "TOTAL",
}

var longDigitRunPattern = regexp.MustCompile(`\d{5,}`)

// ExtractParties scans newline-delimited OCR text for checksum-valid tax-ids
// and associates nearby legal-name and address lines. Duplicate tax-ids are
// kept as separate parties; deduplication is the counterparty chooser's call.
func ExtractParties(text string) []Party {
	lines := strings.Split(text, "\n")
	var parties []Party
	for i, line := range lines {
		taxId := findTaxIdInLine(line)
		if taxId == "" {
			continue
		}
		lo := i - partyWindow
		if lo < 0 {
			lo = 0
		}
		hi := i + partyWindow
		if hi > len(lines)-1 {
			hi = len(lines) - 1
		}
		parties = append(parties, Party{
			TaxId:     taxId,
			LegalName: applyRules(legalNameRules, lines, lo, hi),
			Address:   applyRules(addressRules, lines, lo, hi),
			Role:      RoleUnknown,
		})
	}
	return parties
}

// fieldRule tries to extract one field from the window lines[lo..hi].
// Rules are pure and tried in priority order; the first hit wins.
type fieldRule func(lines []string, lo, hi int) (string, bool)

var legalNameRules = []fieldRule{legalNameSameLine, legalNameAfterLabelLine, legalNameHeuristic}

var addressRules = []fieldRule{addressSameLine, addressBelowLabel}

func applyRules(rules []fieldRule, lines []string, lo, hi int) string {
	for _, rule := range rules {
		if v, ok := rule(lines, lo, hi); ok {
			return v
		}
	}
	return ""
}

// matchLabel finds one of labels in the line (case-insensitive) and returns the
// trimmed remainder after it.
func matchLabel(line string, labels []string) (rest string, found bool) {
	upper := strings.ToUpper(line)
	for _, label := range labels {
		idx := strings.Index(upper, label)
		if idx < 0 {
			continue
		}
		rest = line[idx+len(label):]
		rest = strings.TrimSpace(strings.TrimLeft(rest, " \t:.-"))
		return rest, true
	}
	return "", false
}

func isAnyLabelLine(line string) bool {
	if _, ok := matchLabel(line, legalNameLabels); ok {
		return true
	}
	if _, ok := matchLabel(line, addressLabels); ok {
		return true
	}
	return strings.Contains(strings.ToUpper(line), "CUIT")
}

func hasTaxIdToken(s string) bool {
	return taxIdTokenPattern.MatchString(s)
}

func hasStreetKeyword(s string) bool {
	upper := strings.ToUpper(s)
	for _, kw := range streetKeywords {
		if strings.Contains(upper, kw) {
			return true
		}
	}
	return false
}

func hasDigit(s string) bool {
	return strings.ContainsAny(s, "0123456789")
}

func hasExcludedKeyword(s string) bool {
	upper := strings.ToUpper(s)
	for _, kw := range excludedKeywords {
		if strings.Contains(upper, kw) {
			return true
		}
	}
	return false
}

// legalNameSameLine: "Razón Social: ACME SRL" style, name on the label line.
func legalNameSameLine(lines []string, lo, hi int) (string, bool) {
	for j := lo; j <= hi; j++ {
		rest, ok := matchLabel(lines[j], legalNameLabels)
		if !ok || rest == "" {
			continue
		}
		if len(rest) < 2 || len(rest) > 150 {
			continue
		}
		if isAnyLabelLine(rest) || hasTaxIdToken(rest) {
			continue
		}
		return rest, true
	}
	return "", false
}

// legalNameAfterLabelLine: bare label line with the name on the next line.
func legalNameAfterLabelLine(lines []string, lo, hi int) (string, bool) {
	for j := lo; j <= hi; j++ {
		rest, ok := matchLabel(lines[j], legalNameLabels)
		if !ok || rest != "" {
			continue
		}
		if j+1 > hi {
			continue
		}
		next := strings.TrimSpace(lines[j+1])
		if len(next) < 2 || len(next) > 150 {
			continue
		}
		if isAnyLabelLine(next) || hasTaxIdToken(next) || hasStreetKeyword(next) {
			continue
		}
		return next, true
	}
	return "", false
}

// legalNameHeuristic: no label anywhere near; take the first short line that
// looks like a company name rather than invoice boilerplate.
func legalNameHeuristic(lines []string, lo, hi int) (string, bool) {
	for j := lo; j <= hi; j++ {
		candidate := strings.TrimSpace(lines[j])
		if len(candidate) < 2 || len(candidate) > 150 {
			continue
		}
		if longDigitRunPattern.MatchString(candidate) {
			continue
		}
		if isAnyLabelLine(candidate) || hasTaxIdToken(candidate) || hasExcludedKeyword(candidate) {
			continue
		}
		return candidate, true
	}
	return "", false
}

func looksLikeAddress(s string) bool {
	return hasDigit(s) || hasStreetKeyword(s)
}

// addressSameLine: "Domicilio: Av. Rivadavia 1234" style.
func addressSameLine(lines []string, lo, hi int) (string, bool) {
	for j := lo; j <= hi; j++ {
		rest, ok := matchLabel(lines[j], addressLabels)
		if !ok || rest == "" {
			continue
		}
		if !looksLikeAddress(rest) {
			continue
		}
		return rest, true
	}
	return "", false
}

// addressBelowLabel: bare address label; scan a few lines below it for
// something with a street number or street keyword.
func addressBelowLabel(lines []string, lo, hi int) (string, bool) {
	for j := lo; j <= hi; j++ {
		if _, ok := matchLabel(lines[j], addressLabels); !ok {
			continue
		}
		end := j + addressScanLines
		if end > len(lines)-1 {
			end = len(lines) - 1
		}
		for k := j + 1; k <= end; k++ {
			candidate := strings.TrimSpace(lines[k])
			if candidate == "" || isAnyLabelLine(candidate) || hasTaxIdToken(candidate) {
				continue
			}
			if looksLikeAddress(candidate) {
				return candidate, true
			}
		}
	}
	return "", false
}
