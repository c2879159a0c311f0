// Package protocol implements a Producer/Connection/ProtocolConsumer
// pipeline: a Producer is a connection factory and registry enforcing a
// connection cap; a Connection binds a transport to a current
// ProtocolConsumer, routes received bytes to it, and fires lifecycle
// events; a ProtocolConsumer is the application extension point.
package protocol
