// Package rpc relays distortion vectors from the predictor to the
// compensation controller.
//
// # Overview
//
// The relay is a single unary gRPC method,
// rtdcs.CompensationController/ApplyDistortion, carried over TCP. Payloads
// use the rtdcs-binary codec, which writes the vector in protobuf wire
// format (two fixed64 doubles) without generated code.
//
// # Errors
//
//   - ErrNotConnected: Send before Connect
//   - *TransportError: the connection failed; the client is now disconnected
//   - *ValidationError: the server rejected the payload (InvalidArgument with
//     a BadRequest detail); the connection is kept
//   - *RemoteError: any other server status
//
// # Usage
//
//	srv := rpc.NewServer(rpc.DefaultServerConfig(), handler, logger)
//	go srv.Serve()
//	defer srv.Stop()
//
//	client := rpc.NewClient(rpc.DefaultClientConfig(), logger)
//	if err := client.Connect(ctx); err != nil {
//		return err
//	}
//	defer client.Disconnect()
//	err := client.Send(ctx, models.Vector{X: 5.7, Y: 4.6})
package rpc
