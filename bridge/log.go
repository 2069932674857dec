package bridge

// Logging convention in the `bridge` package:
// Info:
//     essential events for abnormal behavior. This level should be silent on
//     normal operation, with the exception of one time (infrequent)
//     initialization data that is useful for monitoring
//     this includes:
//     - rejected engine commands and channel connect errors
//     - orphaned group transitions
// V(1):
//     key per-pass events with group names/ids that can be used to filter
//     - groups marked unsynced, sync flag transitions
// V(2):
//     frequent events - per-event detector decisions, per-slot mesh sync
//     application, channel frame traffic
//
// Subsystem tags used in messages:
//     [reg] group registry
//     [st]  sync state tracker
//     [det] change detector
//     [ms]  mesh transform sync
//     [ch]  engine channel
