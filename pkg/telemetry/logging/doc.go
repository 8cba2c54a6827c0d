// Package logging builds the structured loggers used across branchclock.
//
// New returns a plain *slog.Logger so every package can keep a
// `logger *slog.Logger` field and fall back to slog.Default(). The handler
// behind it adds two things on top of log/slog:
//
//   - Context fields: repository, branch, ticket, session and trace ids
//     attached with WithRepository, WithBranch and friends are emitted on
//     every *Context call.
//   - Redaction: attributes whose key looks sensitive (token, password,
//     authorization) are masked, and email addresses or bearer/basic
//     credentials inside string values are rewritten.
//
// # Usage
//
//	logger, err := logging.New(logging.Config{Level: "info", Format: "json", Redact: true})
//	if err != nil {
//	    return err
//	}
//	slog.SetDefault(logger)
//
//	ctx = logging.WithTicket(logging.WithBranch(ctx, "feature/PROJ-42"), "PROJ-42")
//	logger.InfoContext(ctx, "timer started")
//	// ... branch=feature/PROJ-42 ticket=PROJ-42
//
// Formats are "json", "text" and "console". Console is text without
// timestamps, meant for an interactive terminal.
package logging
