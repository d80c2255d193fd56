package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"time"

	"github.com/vellko/affiliate-admin/internal/repository"
)

// Pure request-payload construction for the partner platforms. No I/O here;
// callers supply everything, including the generated password and the last
// known publisher name.

var publisherNamePattern = regexp.MustCompile(`^PPC_N(\d+)$`)

// NextPublisherName produces the next name in the PPC_N{n} sequence given the
// most recently approved publisher name. A nil or unparseable input starts the
// sequence at PPC_N1.
func NextPublisherName(last *string) string {
	if last == nil {
		return "PPC_N1"
	}
	m := publisherNamePattern.FindStringSubmatch(*last)
	if m == nil {
		return "PPC_N1"
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return "PPC_N1"
	}
	return fmt.Sprintf("PPC_N%d", n+1)
}

const passwordCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*"

// GeneratePassword returns a fresh random password for a new affiliate's
// external account. Never reuses or fixes a value; each approval gets its own.
func GeneratePassword() (string, error) {
	const length = 16
	out := make([]byte, length)
	max := big.NewInt(int64(len(passwordCharset)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate password: %w", err)
		}
		out[i] = passwordCharset[idx.Int64()]
	}
	return string(out), nil
}

// AffiliateParams maps a signup onto the flat parameter set expected by the
// Cake add/edit affiliate endpoint. affiliate_id "0" means create, and
// account_status_id "3" lands the affiliate in Cake's own pending queue;
// activation there is a separate manual step.
func AffiliateParams(s *repository.Signup, password string, now time.Time) map[string]string {
	ci, mi, ai, pi := s.CompanyInfo, s.MarketingInfo, s.AccountInfo, s.PaymentInfo

	verticalIDs := mi.PrimaryCategory
	if mi.SecondaryCategory != "" && mi.SecondaryCategory != "0" {
		verticalIDs += "," + mi.SecondaryCategory
	}

	ipAddress := s.IPAddress
	if ipAddress == "" {
		ipAddress = "0.0.0.0"
	}

	return map[string]string{
		"affiliate_id":                 "0",
		"affiliate_name":               ci.CompanyName,
		"third_party_name":             "",
		"account_status_id":            "3",
		"inactive_reason_id":           "0",
		"affiliate_tier_id":            "0",
		"account_manager_id":           "0",
		"hide_offers":                  "TRUE",
		"website":                      ci.CorporateWebsite,
		"tax_class":                    pi.TaxClass,
		"ssn_tax_id":                   pi.SSNTaxID,
		"vat_tax_required":             "FALSE",
		"swift_iban":                   "",
		"payment_to":                   pi.PayTo,
		"payment_fee":                  "-1",
		"payment_min_threshold":        "-1",
		"currency_id":                  pi.Currency,
		"payment_setting_id":           "0",
		"billing_cycle_id":             "0",
		"payment_type_id":              "0",
		"payment_type_info":            "Standard",
		"address_street":               ci.Address,
		"address_street2":              ci.Address2,
		"address_city":                 ci.City,
		"address_state":                ci.State,
		"address_zip_code":             ci.Zip,
		"address_country":              ci.Country,
		"contact_first_name":           ai.FirstName,
		"contact_last_name":            ai.LastName,
		"contact_middle_name":          "",
		"contact_email_address":        ai.Email,
		"contact_password":             password,
		"contact_title":                ai.Title,
		"contact_phone_work":           ai.WorkPhone,
		"contact_phone_cell":           ai.CellPhone,
		"contact_phone_fax":            ai.Fax,
		"contact_im_service":           ai.IMService,
		"contact_im_name":              ai.IMHandle,
		"contact_timezone":             "EST",
		"contact_language_id":          "1",
		"media_type_ids":               "3",
		"price_format_ids":             mi.PaymentModel,
		"vertical_category_ids":        verticalIDs,
		"country_codes":                ci.Country,
		"tag_ids":                      "",
		"pixel_html":                   "",
		"postback_url":                 "",
		"postback_delay_ms":            "0",
		"fire_global_pixel":            "TRUE",
		"online_signup":                "TRUE",
		"signup_ip_address":            ipAddress,
		"referral_affiliate_id":        "0",
		"referral_notes":               ci.Referral,
		"date_added":                   now.Format("01/02/2006"),
		"terms_and_conditions_agreed":  "TRUE",
		"notes":                        mi.Comments,
	}
}
