package bookkeeping

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"k8s.io/klog"
)

const (
	CategoryBankFees          = "Tarifas Bancárias"
	CategoryBankIncome        = "Investimentos"
	CategoryCashBookTransfer  = "Transferência entre contas"
	CategoryRecurringDonation = "Doação Recorrente"
	CategoryServices          = "Serviços"
	CategoryTaxes             = "Impostos"
)

type seedRule struct {
	pattern    string
	category   string
	value      string
	comparison ComparisonFunction
	tags       string
}

// first working set of match rules, migrated from the spreadsheet era.
// Exact-amount rules sort before the generic catch-alls on purpose.
var seedRules = []seedRule{
	{pattern: "TARIFA BANCARIA Max Empresarial 1", category: CategoryBankFees, tags: "banco,recorrente"},
	{pattern: ".*CONTADORA.*", category: CategoryServices, value: "-540", comparison: CompareEqual, tags: "contabilidade,recorrente"},
	{pattern: "PAGTO ELETRON COBRANCA CONTADOR", category: CategoryServices, value: "-207.80", comparison: CompareEqual, tags: "contabilidade,recorrente"},
	{pattern: ".*ESTEVAN CASTILHO DE MACEDO.*", category: "Contribuição Associativa", value: "85", comparison: CompareEqual, tags: "mensalidade"},
	{pattern: ".*ELITON P CRUVINEL.*", category: "Contribuição Associativa", value: "85", comparison: CompareEqual, tags: "mensalidade"},
	{pattern: ".*RENNE SILVA G OLIVEIRA ROCHA.*", category: "Contribuição Associativa", value: "85", comparison: CompareEqual, tags: "mensalidade"},
	{pattern: ".*Bruno Renatto Sugobon.*", category: "Contribuição Associativa", value: "110", comparison: CompareEqual, tags: "mensalidade"},
	{pattern: ".*Mensalidade.*", category: "Contribuição Associativa", value: "85", comparison: CompareEqual, tags: "mensalidade"},
	{pattern: ".*Mensalidade.*", category: "Contribuição Associativa", value: "110", comparison: CompareEqual, tags: "mensalidade"},
	{pattern: "TARIFA BANCARIA", category: CategoryBankFees},
	{pattern: "CONTA DE TELEFONE", category: CategoryServices, tags: "vivo,recorrente"},
	{pattern: "CONTA DE AGUA", category: CategoryServices, tags: "sanasa,recorrente"},
	{pattern: "CONTA DE LUZ", category: CategoryServices, tags: "cpfl,recorrente"},
	{pattern: "COBRANCA ALUGUEL", category: CategoryServices, tags: "aluguel,recorrente"},
	{pattern: "RENTAB.INVEST FACILCRED", category: CategoryBankIncome},
	{pattern: "SYSTEN CONSULTORIA", category: CategoryServices, tags: "contabilidade"},
	{pattern: ".*CONTADOR.*", category: CategoryServices, tags: "contabilidade"},
	{pattern: "PAYPAL DO BRASIL", category: CategoryCashBookTransfer},
	{pattern: "PAGTO ELETRONICO TRIBUTO INTERNET --P.M CAMPINAS/SP", category: CategoryTaxes},
	{pattern: "PAGAMENTO DA FATURA", category: CategoryCashBookTransfer},
}

// SeedMatchRules creates the initial category match rules on a fresh
// database. Priorities are spaced by 10 so new rules can be slotted between
// existing ones without renumbering. Does nothing if any rules exist.
func (s *SQLStore) SeedMatchRules(ctx context.Context) error {
	existing, err := s.MatchRules(ctx)
	if err != nil {
		return err
	}

	if len(existing) > 0 {
		klog.Infof("Skipping match rule seed, %d rules already present", len(existing))
		return nil
	}

	for i, seed := range seedRules {
		category, err := s.GetOrCreateCategory(ctx, seed.category)
		if err != nil {
			return err
		}

		rule := &CategoryMatchRule{
			Priority:           (i + 1) * 10,
			Pattern:            seed.pattern,
			CategoryID:         category.ID,
			Category:           category,
			ComparisonFunction: seed.comparison,
			Tags:               seed.tags,
		}

		if seed.value != "" {
			value, err := decimal.NewFromString(seed.value)
			if err != nil {
				return fmt.Errorf("invalid seed rule value %q: %w", seed.value, err)
			}

			rule.Value = &value
		}

		if err := s.SaveMatchRule(ctx, rule); err != nil {
			return err
		}
	}

	klog.Infof("Seeded %d category match rules", len(seedRules))

	return nil
}
