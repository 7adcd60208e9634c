package main

import (
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"
)

// chunkRowBytes is the payload of one DoGet row: src, dst, eid and etype as
// int64.
const chunkRowBytes = 4 * 8

// BuildGRPCServerOptions returns the keepalive, flow control and message size
// options for the Flight server.
func (c *Config) BuildGRPCServerOptions() []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    c.KeepAliveTime,
			Timeout: c.KeepAliveTimeout,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             c.KeepAliveMinTime,
			PermitWithoutStream: c.KeepAlivePermitWithoutStream,
		}),
		grpc.MaxConcurrentStreams(c.GRPCMaxConcurrentStreams),
		grpc.InitialWindowSize(c.GRPCInitialWindowSize),
		grpc.InitialConnWindowSize(c.GRPCInitialConnWindowSize),
		grpc.MaxRecvMsgSize(c.GRPCMaxRecvMsgSize),
		grpc.MaxSendMsgSize(c.GRPCMaxSendMsgSize),
	}
}

// ValidateGRPCConfig checks the gRPC limits, including that the largest DoGet
// chunk fits in one outgoing message.
func (c *Config) ValidateGRPCConfig() error {
	if c.GRPCMaxConcurrentStreams == 0 {
		return errors.New("grpc_max_concurrent_streams must be > 0")
	}
	if c.GRPCInitialWindowSize < 0 {
		return errors.New("grpc_initial_window_size must be >= 0")
	}
	if c.GRPCInitialConnWindowSize < 0 {
		return errors.New("grpc_initial_conn_window_size must be >= 0")
	}
	if c.GRPCMaxRecvMsgSize <= 0 {
		return errors.New("grpc_max_recv_msg_size must be > 0")
	}
	if c.GRPCMaxSendMsgSize <= 0 {
		return errors.New("grpc_max_send_msg_size must be > 0")
	}
	if need := c.MaxChunkRows * chunkRowBytes; need > c.GRPCMaxSendMsgSize {
		return fmt.Errorf("grpc_max_send_msg_size %d cannot carry %d-row chunks (%d bytes)",
			c.GRPCMaxSendMsgSize, c.MaxChunkRows, need)
	}
	return nil
}
