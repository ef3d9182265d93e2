// Client for APRS-IS, the Internet backbone of Automatic Packet Reporting System.
// Text protocol over TCP:
// - every line ends with '\n', optional preceding '\r' is ignored
// - client sends login line first, then packets in TNC2 text format
// - server lines starting with '#' are status and comments, never packets
// - server may drop idle clients, so we send `# keep alive` periodically
// - server sends something at least every ~20 seconds, silence means dead link
//
// Connect returns a Conn, which yields RawPacket values lazily via Receive/Stream.
// Conn may be split into ReadHalf and WriteHalf for use from separate goroutines.
// Socket and keep-alive task live until both halves are closed.
package aprsis
