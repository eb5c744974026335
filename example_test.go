package quergo_test

import (
	"context"
	"fmt"
	"log"

	"github.com/quergo/quergo"
	"github.com/quergo/quergo/cache"
	"github.com/quergo/quergo/component"
	"github.com/quergo/quergo/core"
	"github.com/quergo/quergo/query"
)

func Example() {
	const (
		position component.TypeID = iota
		velocity
	)

	eng, world, err := quergo.NewWithIndex(cache.Config{
		Enabled:            true,
		MinEntitiesToCache: 1,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer eng.Close()

	for i := 0; i < 3; i++ {
		world.CreateEntity(position, velocity)
	}
	world.CreateEntity(position)

	desc := query.MustDescriptor([]component.TypeID{position, velocity}, nil, nil, 0)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		moved := 0
		if err := eng.Execute(ctx, desc, func(id core.EntityID) error {
			moved++
			return nil
		}, true); err != nil {
			log.Fatal(err)
		}
		fmt.Println("moved:", moved)
	}

	stats := eng.Statistics()
	fmt.Println("hits:", stats.Hits, "misses:", stats.Misses)
	// Output:
	// moved: 3
	// moved: 3
	// hits: 1 misses: 1
}
