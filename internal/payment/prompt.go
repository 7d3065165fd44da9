package payment

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"hostellite/internal/domain"
	"hostellite/internal/models"
)

// PromptPresenter asks on the terminal before handing the session to the
// wrapped presenter. Declining is a user cancellation.
type PromptPresenter struct {
	next     domain.PaymentPresenter
	in       io.Reader
	out      io.Writer
	merchant string
}

func NewPromptPresenter(next domain.PaymentPresenter, in io.Reader, out io.Writer, merchant string) *PromptPresenter {
	return &PromptPresenter{next: next, in: in, out: out, merchant: merchant}
}

func (p *PromptPresenter) Present(ctx context.Context, session models.PaymentSession) (models.PaymentOutcome, error) {
	fmt.Fprintf(p.out, "%s\nTotal: %s\nPay now? [y/N]: ", p.merchant, FormatAmount(session.AmountMinor(), session.Currency()))

	answer := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(p.in).ReadString('\n')
		answer <- strings.ToLower(strings.TrimSpace(line))
	}()

	select {
	case <-ctx.Done():
		return models.PaymentOutcome{}, ctx.Err()
	case a := <-answer:
		if a != "y" && a != "yes" {
			return models.PaymentOutcome{Status: models.OutcomeCancelled, Message: "payment cancelled", PaymentIntentID: session.ID()}, nil
		}
	}

	return p.next.Present(ctx, session)
}

// FormatAmount renders minor units as "PKR 10,000.00".
func FormatAmount(minor int64, currency string) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	whole := strconv.FormatInt(minor/models.MinorUnitsPerMajor, 10)
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return fmt.Sprintf("%s %s%s.%02d", strings.ToUpper(currency), sign, b.String(), minor%models.MinorUnitsPerMajor)
}
