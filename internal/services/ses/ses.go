// Package ses provides catalog ingestion reports via AWS SES
package ses

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"go.uber.org/zap"

	"game-recommendation-engine/internal/models"
	"game-recommendation-engine/internal/utils"
)

// MaxReportedFailures caps the row failures listed in a report.
const MaxReportedFailures = 10

// Service handles SES email operations
type Service struct {
	client    *ses.Client
	fromEmail string
	logger    *zap.Logger
}

// EmailParams represents parameters for sending an email
type EmailParams struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
	ReplyTo  string
}

// IngestReportParams contains data for a catalog ingestion report.
type IngestReportParams struct {
	Recipient string
	Result    *models.IngestResult
	// Failed marks a run that stored nothing.
	Failed bool
	Error  string
}

// SendEmailResult contains the result of sending an email
type SendEmailResult struct {
	MessageID string
	SentAt    time.Time
}

// NewService creates a new SES service sending from fromEmail.
func NewService(ctx context.Context, fromEmail, region string) (*Service, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Service{
		client:    ses.NewFromConfig(cfg),
		fromEmail: fromEmail,
		logger:    utils.Component("ses"),
	}, nil
}

// SendEmail sends a basic email
func (s *Service) SendEmail(ctx context.Context, params EmailParams) (*SendEmailResult, error) {
	input := &ses.SendEmailInput{
		Source: aws.String(s.fromEmail),
		Destination: &types.Destination{
			ToAddresses: []string{params.To},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(params.Subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{},
		},
	}

	if params.HTMLBody != "" {
		input.Message.Body.Html = &types.Content{
			Data:    aws.String(params.HTMLBody),
			Charset: aws.String("UTF-8"),
		}
	}

	if params.TextBody != "" {
		input.Message.Body.Text = &types.Content{
			Data:    aws.String(params.TextBody),
			Charset: aws.String("UTF-8"),
		}
	}

	if params.ReplyTo != "" {
		input.ReplyToAddresses = []string{params.ReplyTo}
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("Failed to send email",
			zap.String("to", params.To),
			zap.String("subject", params.Subject),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to send email: %w", err)
	}

	messageID := aws.ToString(result.MessageId)
	s.logger.Info("Email sent successfully",
		zap.String("to", params.To),
		zap.String("subject", params.Subject),
		zap.String("messageId", messageID),
	)

	return &SendEmailResult{
		MessageID: messageID,
		SentAt:    time.Now(),
	}, nil
}

// SendIngestReport emails the outcome of a catalog ingestion run.
func (s *Service) SendIngestReport(ctx context.Context, params IngestReportParams) (*SendEmailResult, error) {
	htmlBody, err := RenderIngestReportHTML(params)
	if err != nil {
		return nil, fmt.Errorf("failed to render email template: %w", err)
	}

	return s.SendEmail(ctx, EmailParams{
		To:       params.Recipient,
		Subject:  IngestReportSubject(params),
		HTMLBody: htmlBody,
		TextBody: RenderIngestReportText(params),
	})
}

// IngestReportSubject returns the subject line for a report.
func IngestReportSubject(params IngestReportParams) string {
	if params.Failed || params.Result == nil {
		return "Catalog ingestion failed"
	}
	return fmt.Sprintf("Catalog ingestion complete: %d games loaded, %d skipped",
		params.Result.Loaded, params.Result.Skipped)
}

type reportView struct {
	IngestReportParams
	Shown     []models.RowFailure
	Remaining int
}

func newReportView(params IngestReportParams) reportView {
	view := reportView{IngestReportParams: params}
	if params.Result == nil {
		view.Result = &models.IngestResult{}
	}
	view.Shown = view.Result.Failures
	if len(view.Shown) > MaxReportedFailures {
		view.Remaining = len(view.Shown) - MaxReportedFailures
		view.Shown = view.Shown[:MaxReportedFailures]
	}
	return view
}

var reportTemplate = template.Must(template.New("ingest_report").Parse(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background: #1b2838; color: #c7d5e0; padding: 24px; border-radius: 10px 10px 0 0; }
        .header h1 { margin: 0; font-size: 22px; }
        .content { background: #f9f9f9; padding: 24px; border-radius: 0 0 10px 10px; }
        table { border-collapse: collapse; width: 100%; }
        td { padding: 6px 0; }
        .label { color: #999; }
        .failed { color: #c0392b; }
        .footer { text-align: center; margin-top: 24px; color: #999; font-size: 12px; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{if .Failed}}Catalog ingestion failed{{else}}Catalog ingestion complete{{end}}</h1>
        <p>Batch {{.Result.BatchID}}</p>
    </div>
    <div class="content">
        {{if .Error}}<p class="failed">{{.Error}}</p>{{end}}
        <table>
            <tr><td class="label">Source</td><td>{{.Result.Source}}</td></tr>
            <tr><td class="label">Rows read</td><td>{{.Result.TotalRows}}</td></tr>
            <tr><td class="label">Games loaded</td><td>{{.Result.Loaded}}</td></tr>
            <tr><td class="label">Rows skipped</td><td>{{.Result.Skipped}}</td></tr>
            <tr><td class="label">Processing time</td><td>{{.Result.ProcessingTime}}</td></tr>
        </table>
        {{if .Shown}}
        <h3>Skipped rows</h3>
        <ul>
            {{range .Shown}}<li>{{if .Title}}{{.Title}}: {{end}}{{.Reason}}</li>{{end}}
        </ul>
        {{if .Remaining}}<p>and {{.Remaining}} more</p>{{end}}
        {{end}}
    </div>
    <div class="footer">
        <p>This email was sent by Game Recommendation Engine</p>
    </div>
</body>
</html>`))

// RenderIngestReportHTML renders the HTML report body.
func RenderIngestReportHTML(params IngestReportParams) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, newReportView(params)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderIngestReportText renders the plain text report body.
func RenderIngestReportText(params IngestReportParams) string {
	view := newReportView(params)
	var buf bytes.Buffer

	if view.Failed {
		buf.WriteString("Catalog ingestion failed.\n\n")
	} else {
		buf.WriteString("Catalog ingestion complete.\n\n")
	}
	if view.Error != "" {
		fmt.Fprintf(&buf, "Error: %s\n\n", view.Error)
	}

	fmt.Fprintf(&buf, "Batch: %s\n", view.Result.BatchID)
	fmt.Fprintf(&buf, "Source: %s\n", view.Result.Source)
	fmt.Fprintf(&buf, "Rows read: %d\n", view.Result.TotalRows)
	fmt.Fprintf(&buf, "Games loaded: %d\n", view.Result.Loaded)
	fmt.Fprintf(&buf, "Rows skipped: %d\n", view.Result.Skipped)
	fmt.Fprintf(&buf, "Processing time: %s\n", view.Result.ProcessingTime)

	if len(view.Shown) > 0 {
		buf.WriteString("\nSkipped rows:\n")
		for _, f := range view.Shown {
			if f.Title != "" {
				fmt.Fprintf(&buf, "  - %s: %s\n", f.Title, f.Reason)
			} else {
				fmt.Fprintf(&buf, "  - %s\n", f.Reason)
			}
		}
		if view.Remaining > 0 {
			fmt.Fprintf(&buf, "  ... and %d more\n", view.Remaining)
		}
	}

	buf.WriteString("\nGame Recommendation Engine\n")
	return buf.String()
}
