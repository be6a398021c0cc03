package config

import (
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

var gstinPattern = regexp.MustCompile(`^[0-9]{2}[A-Z0-9]{13}$`)

// BillingSettings is the process-wide platform tax identity used when the
// platform invoices merchants for its fees.
type BillingSettings struct {
	LegalName       string `mapstructure:"legalName"`
	GSTIN           string `mapstructure:"gstin"`
	StateCode       string `mapstructure:"stateCode"`
	Address         string `mapstructure:"address"`
	FeeGSTRateBps   int64  `mapstructure:"feeGstRateBps"`
	InvoiceDueDays  int    `mapstructure:"invoiceDueDays"`
	CycleWeekday    string `mapstructure:"cycleWeekday"`
	InvoiceFooter   string `mapstructure:"invoiceFooter"`
	SupportEmail    string `mapstructure:"supportEmail"`
	DefaultCurrency string `mapstructure:"defaultCurrency"`
}

func DefaultBillingSettings() BillingSettings {
	return BillingSettings{
		LegalName:       "Merceton Technologies Private Limited",
		GSTIN:           "29ABCDE1234F1Z5",
		StateCode:       "29",
		Address:         "Bengaluru, Karnataka",
		FeeGSTRateBps:   1800,
		InvoiceDueDays:  7,
		CycleWeekday:    "monday",
		InvoiceFooter:   "This is a computer generated invoice.",
		SupportEmail:    "support@merceton.com",
		DefaultCurrency: "INR",
	}
}

// CycleStart returns the configured weekday that opens a weekly billing cycle.
func (s BillingSettings) CycleStart() time.Weekday {
	weekday, ok := parseWeekday(s.CycleWeekday)
	if !ok {
		return time.Monday
	}
	return weekday
}

// BillingSettingsHolder keeps the current BillingSettings and swaps them on
// config file changes.
type BillingSettingsHolder struct {
	current atomic.Value // holds BillingSettings
}

// NewStaticBillingSettings returns a holder that never reloads.
func NewStaticBillingSettings(settings BillingSettings) *BillingSettingsHolder {
	holder := &BillingSettingsHolder{}
	holder.current.Store(settings)
	return holder
}

func NewBillingSettingsHolder() (*BillingSettingsHolder, error) {
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/merceton")
	v.AddConfigPath(".")

	v.SetEnvPrefix("MERCETON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBillingSettings()
	v.SetDefault("billing.legalName", defaults.LegalName)
	v.SetDefault("billing.gstin", defaults.GSTIN)
	v.SetDefault("billing.stateCode", defaults.StateCode)
	v.SetDefault("billing.address", defaults.Address)
	v.SetDefault("billing.feeGstRateBps", defaults.FeeGSTRateBps)
	v.SetDefault("billing.invoiceDueDays", defaults.InvoiceDueDays)
	v.SetDefault("billing.cycleWeekday", defaults.CycleWeekday)
	v.SetDefault("billing.invoiceFooter", defaults.InvoiceFooter)
	v.SetDefault("billing.supportEmail", defaults.SupportEmail)
	v.SetDefault("billing.defaultCurrency", defaults.DefaultCurrency)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	var settings BillingSettings
	if err := v.UnmarshalKey("billing", &settings); err != nil {
		return nil, err
	}
	if err := ValidateBillingSettings(settings); err != nil {
		return nil, err
	}

	holder := NewStaticBillingSettings(settings)
	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated BillingSettings
		if err := v.UnmarshalKey("billing", &updated); err != nil {
			log.Printf("[billing-settings] reload failed: %v", err)
			return
		}
		if err := ValidateBillingSettings(updated); err != nil {
			log.Printf("[billing-settings] invalid settings ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[billing-settings] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *BillingSettingsHolder) Get() BillingSettings {
	return h.current.Load().(BillingSettings)
}

func ValidateBillingSettings(s BillingSettings) error {
	if strings.TrimSpace(s.LegalName) == "" {
		return errors.New("billing.legalName cannot be empty")
	}
	if !gstinPattern.MatchString(strings.ToUpper(strings.TrimSpace(s.GSTIN))) {
		return fmt.Errorf("billing.gstin %q is not a valid GSTIN", s.GSTIN)
	}
	if len(strings.TrimSpace(s.StateCode)) != 2 {
		return errors.New("billing.stateCode must be a two digit state code")
	}
	if s.FeeGSTRateBps < 0 || s.FeeGSTRateBps > 10000 {
		return errors.New("billing.feeGstRateBps must be within 0..10000")
	}
	if s.InvoiceDueDays < 0 {
		return errors.New("billing.invoiceDueDays cannot be negative")
	}
	if _, ok := parseWeekday(s.CycleWeekday); !ok {
		return fmt.Errorf("billing.cycleWeekday %q is not a weekday", s.CycleWeekday)
	}
	return nil
}

func parseWeekday(raw string) (time.Weekday, bool) {
	value := strings.ToLower(strings.TrimSpace(raw))
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.ToLower(d.String()) == value {
			return d, true
		}
	}
	return time.Sunday, false
}
