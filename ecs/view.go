package ecs

// Each calls fn with a pointer to A for every entity in q. Entities of q
// lacking A are skipped, so A does not have to be one of q's types.
//
// fn may change component values freely. Adding or removing A inside fn can
// move other A values and should be avoided; destroying entities is safe.
func Each[A any](q *Query, fn func(Entity, *A)) {
	ta := tableFor[A](q.world)
	for _, e := range q.Entities() {
		if !q.world.entities.valid(e) {
			continue
		}
		a, ok := ta.Get(e)
		if !ok {
			continue
		}
		fn(e, a)
	}
}

// Each2 is Each for two component types.
func Each2[A, B any](q *Query, fn func(Entity, *A, *B)) {
	ta := tableFor[A](q.world)
	tb := tableFor[B](q.world)
	for _, e := range q.Entities() {
		if !q.world.entities.valid(e) {
			continue
		}
		a, ok := ta.Get(e)
		if !ok {
			continue
		}
		b, ok := tb.Get(e)
		if !ok {
			continue
		}
		fn(e, a, b)
	}
}

// Each3 is Each for three component types.
func Each3[A, B, C any](q *Query, fn func(Entity, *A, *B, *C)) {
	ta := tableFor[A](q.world)
	tb := tableFor[B](q.world)
	tc := tableFor[C](q.world)
	for _, e := range q.Entities() {
		if !q.world.entities.valid(e) {
			continue
		}
		a, ok := ta.Get(e)
		if !ok {
			continue
		}
		b, ok := tb.Get(e)
		if !ok {
			continue
		}
		c, ok := tc.Get(e)
		if !ok {
			continue
		}
		fn(e, a, b, c)
	}
}
