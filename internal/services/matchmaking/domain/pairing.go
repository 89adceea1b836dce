package domain

// BucketKey identifies one compatibility group of active tickets.
type BucketKey struct {
	Game     string
	Region   string
	GameMode string
}

// bucketTickets partitions tickets by bucket key. Keys are returned in order
// of first appearance so a caller iterating the batch in creation order sees
// deterministic bucket order; ticket order within each bucket is preserved.
func bucketTickets(tickets []Ticket) ([]BucketKey, map[BucketKey][]Ticket) {
	var keys []BucketKey
	buckets := make(map[BucketKey][]Ticket)
	for _, ticket := range tickets {
		key := ticket.Bucket()
		if _, ok := buckets[key]; !ok {
			keys = append(keys, key)
		}
		buckets[key] = append(buckets[key], ticket)
	}
	return keys, buckets
}

// findPairs runs the first-fit greedy scan over one bucket. Tickets are
// expected in creation-time order; each ticket pairs with the first later
// unconsumed ticket it is compatible with. The result is not globally
// optimal, only cheap and stable for a fixed input order.
func findPairs(tickets []Ticket) [][2]Ticket {
	used := make([]bool, len(tickets))
	var pairs [][2]Ticket
	for i := range tickets {
		if used[i] {
			continue
		}
		for j := i + 1; j < len(tickets); j++ {
			if used[j] {
				continue
			}
			if Compatible(tickets[i], tickets[j]) {
				used[i] = true
				used[j] = true
				pairs = append(pairs, [2]Ticket{tickets[i], tickets[j]})
				break
			}
		}
	}
	return pairs
}
