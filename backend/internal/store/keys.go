package store

import "fmt"

// 键语义：
// - slotKey(name): 一个文档 slot 的最新序列化内容（String）

const keySlotFmt = "autoformat:slot:{%s}" // hash tag 保证集群模式下同一个 slot 落在同一节点

func slotKey(name string) string { return fmt.Sprintf(keySlotFmt, name) }
