package notifications

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

type WhatsAppClient struct {
	client *twilio.RestClient
	from   string
}

func NewWhatsAppClient(accountSID, authToken, from string) *WhatsAppClient {
	if strings.TrimSpace(accountSID) == "" || strings.TrimSpace(authToken) == "" || strings.TrimSpace(from) == "" {
		return nil
	}
	return &WhatsAppClient{
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: accountSID,
			Password: authToken,
		}),
		from: from,
	}
}

// SendFollowupReminder delivers a due follow-up reminder over WhatsApp.
func (c *WhatsAppClient) SendFollowupReminder(toPhone, leadTitle, description string, due time.Time) (string, error) {
	if c == nil {
		return "", errors.New("whatsapp client is nil")
	}
	if strings.TrimSpace(toPhone) == "" {
		return "", errors.New("missing recipient phone")
	}

	body := fmt.Sprintf("Follow-up due for %s at %s.\n%s", leadTitle, due.Format("02 Jan 2006 15:04"), description)

	params := &twilioApi.CreateMessageParams{}
	params.SetTo("whatsapp:" + toPhone)
	params.SetFrom("whatsapp:" + c.from)
	params.SetBody(body)

	resp, err := c.client.Api.CreateMessage(params)
	if err != nil {
		return "", err
	}
	if resp.Sid != nil {
		return *resp.Sid, nil
	}
	return "", nil
}
