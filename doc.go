// Package lifetrack keeps a runtime ledger of the instances of opted-in types.
//
// Each tracked instance gets an identifier and a creation timestamp, is
// observed through a weak pointer so tracking never keeps it alive, and is
// stamped with a deletion time when it is closed. Per-class and global
// statistics are available at any time, and instances that were dropped
// without being closed can be found with an orphan scan.
//
// # Opting In
//
// Obtain a Class for the type once and embed Handle in it:
//
//	type Conn struct {
//	    lifetrack.Handle
//	    addr string
//	}
//
//	var conns = lifetrack.MustTrack[Conn](lifetrack.Default())
//
// # Construction
//
// New allocates the instance, registers it, and then runs the initializer, so
// the identifier is available inside it:
//
//	conn, err := conns.New(func(c *Conn, h *lifetrack.Handle) error {
//	    c.addr = addr
//	    return h.OnClose(c.disconnect)
//	})
//
// Already-allocated values are registered with Register:
//
//	c := &Conn{addr: addr}
//	_, err := conns.Register(c, lifetrack.WithCleanup(c.disconnect))
//
// # Closing
//
// Close runs the registered cleanups once, newest first, and retires the
// record. Closing again is a no-op reported as RedundantClose:
//
//	status, err := conn.CloseStatus()
//
// Use ties a resource to a scope and closes it on every exit path:
//
//	err := lifetrack.Use(conn, func(c *Conn) error {
//	    return c.Ping()
//	})
//
// Types that override Close must call the embedded Handle.Close. Skipping it
// leaves the record active forever; it is then reported as an orphan once the
// instance is reclaimed. Cleanups registered with OnClose avoid the problem.
//
// # Statistics
//
//	conns.Stats()                 // ClassStats
//	conns.ActiveInstances()       // iter.Seq[*Conn]
//	registry.Classes()            // names in first-registration order
//	registry.GlobalStats()        // totals over all classes
//	registry.PrintStats()         // human-readable summary
//
// # Orphans
//
// FindOrphans lists records flagged active whose instance has been reclaimed:
//
//	for _, ref := range registry.FindOrphans() {
//	    log.Printf("leaked %s", ref)
//	}
//
// The scan is a point-in-time view and races with concurrent closes. With
// WithOrphanPolicy(RetireOrphans) every reported record is also retired.
//
// # Registries
//
// Default returns the process-wide registry. New builds independent ones,
// which keeps tests isolated:
//
//	r := lifetrack.New(
//	    lifetrack.WithIDScheme(lifetrack.GlobalIDs),
//	    lifetrack.WithLogger(logger),
//	    lifetrack.WithRetireObserver(func(class string, id uint64, d time.Duration, s lifetrack.CloseStatus) {
//	        metrics.RecordLifetime(class, d)
//	    }),
//	)
package lifetrack
