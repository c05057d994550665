// Package relay bridges a relay device and an MQTT bus.
//
// # Architecture
//
//	device ──callbacks──► EventRouter ──► Session.Publish ──► broker
//	device ◄──commands─── CommandRouter ◄── Session ◄──────── broker
//
// The Session owns the connection lifecycle. Each time it reaches the
// connected state it subscribes every command topic in one call and asks the
// device to re-emit its state, so retained topics never stay stale after a
// reconnect.
//
// # Topics
//
// All topics live under a configurable prefix (default "Relay"):
//
//	<prefix>/buttons/<idx>/click/<count>     out  ON          not retained
//	<prefix>/buttons/<idx>/held/<count>      out  ON          not retained
//	<prefix>/buttons/<idx>/released/<count>  out  ON          not retained
//	<prefix>/relays/<idx>/state              out  ON|OFF      retained
//	<prefix>/sensors/temperature             out  decimal     retained
//	<prefix>/sensors/humidity                out  decimal     retained
//	<prefix>/relays/<idx>                    in   ON|OFF|1|0
//	<prefix>/screen                          in   ON|OFF|1|0
//
// # Button behaviour
//
// Each button has a Flags set. FlagToggle flips the matching relay on a
// single click; the Send flags choose which button events are published.
package relay
