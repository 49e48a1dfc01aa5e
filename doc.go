// Package arbor is an engine-style runtime for interactive 3D scenes: a
// hierarchical node tree with a lifecycle protocol, typed signals, a
// reference-counted resource cache and pluggable backend servers.
//
// arbor is the orchestration layer only. Rendering, physics and the window
// live behind the [server] package's backend interfaces; the
// backend/ebitenbackend package provides an [Ebitengine] implementation and
// the server package ships in-memory backends for headless runs and tests.
//
// # Quick start
//
//	engine, err := arbor.NewEngine(arbor.Options{
//		Logger: logger,
//		Source: resource.NewDirSource("assets"),
//	})
//	if err != nil { ... }
//	tree, err := engine.LoadMainScene("scenes/level.scene")
//	if err != nil { ... }
//	err = arbor.RunHeadless(ctx, tree, arbor.RunOptions{MaxFrames: 600})
//
// # Nodes and the tree
//
// Every element is a [Node]. Nodes are created detached with [NewNode],
// may be given detached children with [Node.AddChild], and enter a tree
// through [Tree.AddChild]. The tree stores nodes in an arena and hands out
// [Handle] values; a handle of a destroyed node is stale and every
// operation on it fails with a [*StructuralError].
//
// Behavior is attached by value, not by embedding: a node's Behavior may
// implement any of [EnterTreeHandler], [ReadyHandler], [ProcessHandler],
// [PhysicsProcessHandler], [ExitTreeHandler] and [NotificationHandler].
// [Hooks] adapts plain functions.
//
//	spinner := arbor.NewNode("Spinner", &arbor.Hooks{
//		Process: func(n *arbor.Node, dt float64) {
//			n.SetRotation(n.LocalTransform().Rotation.Mul(step))
//		},
//	})
//	tree.AddChild(tree.Root(), spinner)
//
// # Frames
//
// [Tree.Advance] runs one frame: queued structural changes are applied,
// timers and deferred calls run, ready reaches nodes that entered the tree,
// process runs in tree order, fixed-step physics runs zero or more times,
// tweens advance, component state is pushed into the servers and the
// servers flush. Structural changes requested from a hook are queued until
// the next frame, so a pass always sees a stable tree.
//
// # Signals
//
// [DefineSignal] declares a typed [Signal] on a node; [Connect] and [Emit]
// reach it through the tree by handle and name. Handlers run synchronously
// in connection order and a failing handler never stops delivery to the
// others.
//
// [Ebitengine]: https://ebitengine.org
package arbor
