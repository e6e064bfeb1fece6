package rpc

import (
	"crypto/tls"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// StopTimeout bounds how long StopServer waits for in-flight calls.
const StopTimeout = 10 * time.Second

// GetClientOpts returns the dial options for target. Targets on port 443 are
// dialed over TLS.
func GetClientOpts(target string) []grpc.DialOption {
	if strings.HasSuffix(target, ":443") {
		return []grpc.DialOption{grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{}))}
	}
	return []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
}

// StopServer gracefully stops s, forcing the stop after StopTimeout.
func StopServer(s *grpc.Server) {
	stopped := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(stopped)
	}()
	timer := time.NewTimer(StopTimeout)
	select {
	case <-timer.C:
		s.Stop()
	case <-stopped:
		timer.Stop()
	}
}
