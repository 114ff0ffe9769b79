// Package broker distributes task lifecycle events over named topics.
//
// Two implementations share one contract: Local keeps topics in process and
// drops subscribers that cannot keep up, NATS publishes the JSON form of each
// event on a subject named after the topic.
//
//	topic := broker.Local().Topic(ctx, "taskrt.events")
//	sub, err := topic.Subscribe(ctx, hook)
//	if err != nil {
//	    return err
//	}
//	defer sub.Unsubscribe()
//
//	ex, err := pool.New(pool.Settings{}, taskrt.Observe(events.NewObserver(ctx, topic, time.Second)))
//
// A subscription ends when it is unsubscribed or when the context it was
// created with is done.
package broker
