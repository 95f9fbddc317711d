// Package partition keeps one buffered emitter per Kafka partition.
//
// Records read from the consumer are routed by partition to an emitter
// created on demand by the configured EmitterFactory:
//
//	manager := partition.NewManager(factory, logger, metrics)
//	if err := manager.Write(record); err != nil {
//	    // handle
//	}
//
// # Rebalances
//
// Revoke closes the emitters of partitions taken away from this member.
// Register it with the consumer so it runs while offsets can still be
// committed:
//
//	consumer.OnRevoke(manager.Revoke)
//
// A write racing a revoke is retried once on a freshly created emitter.
//
// # Shutdown
//
// Close closes every emitter. Records still buffered below the threshold
// are dropped without committing, so Kafka redelivers them after restart.
package partition
