package retry

import (
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
)

// ConnectErrorClassifier marks failures to open a warehouse connection as
// transient when a later attempt could plausibly succeed.
// Authentication errors, missing databases, and SQL errors are fatal.
type ConnectErrorClassifier struct{}

// NewConnectErrorClassifier creates a new ConnectErrorClassifier.
func NewConnectErrorClassifier() *ConnectErrorClassifier {
	return &ConnectErrorClassifier{}
}

// transientPatterns cover errors pgx reports as plain text during dial.
var transientPatterns = []string{
	"connection refused",
	"connection reset",
	"network is unreachable",
	"i/o timeout",
	"broken pipe",
	"server closed the connection",
	"unexpected eof",
	"the database system is starting up",
}

// IsTransient determines if a connect error is retryable.
func (c *ConnectErrorClassifier) IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "08"): // connection exception
			return true
		case pgErr.Code == "53300": // too_many_connections
			return true
		case pgErr.Code == "57P03": // cannot_connect_now
			return true
		}
		return false
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTemporary || dnsErr.IsTimeout
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Timeout() {
			return true
		}
		if errors.Is(opErr.Err, syscall.ECONNREFUSED) ||
			errors.Is(opErr.Err, syscall.ECONNRESET) ||
			errors.Is(opErr.Err, syscall.ENETUNREACH) ||
			errors.Is(opErr.Err, syscall.EHOSTUNREACH) {
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range transientPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
